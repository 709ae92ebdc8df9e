package encode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDataURISniffsFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes(t, 2, 2, color.White), "data:image/png;base64,"},
		{"jpeg", jpegBytes(t, 2, 2), "data:image/jpeg;base64,"},
		{"unknown defaults to png", []byte("definitely not an image"), "data:image/png;base64,"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			uri, err := DataURI(c.data)
			if err != nil {
				t.Fatalf("DataURI error: %v", err)
			}
			if !strings.HasPrefix(uri, c.want) {
				t.Errorf("uri prefix = %q, want %q", uri[:min(len(uri), 40)], c.want)
			}
		})
	}
}

func TestDataURIEmptyInput(t *testing.T) {
	if _, err := DataURI(nil); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
}

func TestDataURIDeterministicAndInjective(t *testing.T) {
	a := pngBytes(t, 2, 2, color.White)
	b := pngBytes(t, 2, 2, color.Black)

	uriA1, err := DataURI(a)
	if err != nil {
		t.Fatal(err)
	}
	uriA2, err := DataURI(a)
	if err != nil {
		t.Fatal(err)
	}
	uriB, err := DataURI(b)
	if err != nil {
		t.Fatal(err)
	}

	if uriA1 != uriA2 {
		t.Errorf("same input produced different URIs")
	}
	if uriA1 == uriB {
		t.Errorf("distinct inputs produced identical URIs")
	}
}

func TestDownscaleLeavesSmallImagesUntouched(t *testing.T) {
	data := pngBytes(t, 10, 10, color.White)
	out, err := Downscale(data, 1024)
	if err != nil {
		t.Fatalf("Downscale error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("small image was modified")
	}
}

func TestDownscaleShrinksOversizedImages(t *testing.T) {
	data := pngBytes(t, 200, 100, color.White)
	out, err := Downscale(data, 50)
	if err != nil {
		t.Fatalf("Downscale error: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode downscaled: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("bounds = %dx%d, want 50x25", cfg.Width, cfg.Height)
	}
}

func TestDownscaleDisabledAndUndecodable(t *testing.T) {
	big := pngBytes(t, 200, 100, color.White)
	out, err := Downscale(big, 0)
	if err != nil || !bytes.Equal(out, big) {
		t.Errorf("maxDim 0 must pass through, err = %v", err)
	}

	junk := []byte("not an image at all")
	out, err = Downscale(junk, 10)
	if err != nil || !bytes.Equal(out, junk) {
		t.Errorf("undecodable bytes must pass through, err = %v", err)
	}
}
