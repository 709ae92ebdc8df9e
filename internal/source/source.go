// Package source normalizes heterogeneous inputs (remote URLs, local image
// files, multi-page PDFs) into a uniform sequence of images for the pipeline.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vlmocr/vlmocr/internal/common"
	"github.com/vlmocr/vlmocr/internal/render"
)

// ErrUnsupportedFormat is returned for local paths whose extension is not a
// recognized image or PDF type.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Image is one unit of visual content to recognize: either a remote URL
// left for the inference endpoint to fetch, or raw encoded bytes. Exactly
// one of URL and Data is populated.
type Image struct {
	URL  string
	Data []byte
	// Mime is the mime type of Data when known, empty for remote URLs.
	Mime string
	// Page is the 1-based page number within the originating document.
	// Single images are page 1.
	Page int
}

// Remote reports whether the image is referenced by URL rather than bytes.
func (i Image) Remote() bool { return i.URL != "" }

// Resolve turns a path or URL into an ordered sequence of images.
//
// Absolute http/https URLs pass through untouched, with no filesystem
// access. Local image files are read whole. PDFs are rasterized page by
// page at the given DPI through the provided backend; a nil backend makes
// any PDF input fail with render.ErrUnavailable.
func Resolve(ctx context.Context, input string, dpi int, pdf render.Backend) ([]Image, error) {
	if isRemoteURL(input) {
		return []Image{{URL: input, Page: 1}}, nil
	}

	ext := strings.ToLower(filepath.Ext(input))
	if mime, ok := common.ImageExtensions[ext]; ok {
		data, err := os.ReadFile(input) // #nosec G304 - caller-supplied input path is the point of this tool
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", input, err)
		}
		return []Image{{Data: data, Mime: mime, Page: 1}}, nil
	}

	if ext == common.PDFExtension {
		return resolvePDF(ctx, input, dpi, pdf)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, input)
}

func resolvePDF(ctx context.Context, path string, dpi int, pdf render.Backend) ([]Image, error) {
	if pdf == nil {
		return nil, render.ErrUnavailable
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat pdf %s: %w", path, err)
	}
	if dpi <= 0 {
		dpi = common.DefaultDPI
	}

	pages, err := pdf.RenderPages(ctx, path, dpi)
	if err != nil {
		return nil, fmt.Errorf("render pdf %s: %w", path, err)
	}

	images := make([]Image, 0, len(pages))
	for i, data := range pages {
		images = append(images, Image{Data: data, Mime: common.MimeImageJPEG, Page: i + 1})
	}
	return images, nil
}

func isRemoteURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
