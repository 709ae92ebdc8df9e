package render

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when PDF rasterization is requested but no
// rendering backend is installed. This is a configuration error: the whole
// batch is aborted rather than failing page by page.
var ErrUnavailable = errors.New("no pdf rendering backend available (install poppler-utils)")

// Backend rasterizes PDF pages to images. Implementations are selected once
// at startup; callers treat a nil backend as "capability absent".
type Backend interface {
	// Name identifies the backend for logs and config readback.
	Name() string
	// RenderPages rasterizes every page of the document at the given DPI and
	// returns the encoded image bytes in ascending page order.
	RenderPages(ctx context.Context, pdfPath string, dpi int) ([][]byte, error)
}

// Detect probes the host for a usable backend. It returns ErrUnavailable
// when none is found.
func Detect() (Backend, error) {
	if b, ok := detectPoppler(); ok {
		return b, nil
	}
	return nil, ErrUnavailable
}
