package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// jpegQuality matches the quality the inference endpoint was tuned
// against; higher values inflate token usage without accuracy gains.
const jpegQuality = 85

// Downscale re-encodes images whose dimensions exceed maxDim on either
// axis, preserving aspect ratio. Images already within bounds, a maxDim of
// zero, and bytes that do not decode all pass through unchanged.
func Downscale(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 || len(data) == 0 {
		return data, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}

	width, height := fitWithin(cfg.Width, cfg.Height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode downscaled image: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, maxDim int) (int, int) {
	ratioW := float64(maxDim) / float64(width)
	ratioH := float64(maxDim) / float64(height)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}
	w := int(float64(width) * ratio)
	h := int(float64(height) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
