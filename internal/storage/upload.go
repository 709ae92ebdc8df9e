// Package storage handles temporary uploads for the web surface. Files
// live only for the duration of one request; the caller is responsible for
// invoking the returned cleanup function.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vlmocr/vlmocr/internal/common"
)

// Uploader stores temporary uploads on disk.
type Uploader struct {
	baseDir string
}

// NewUploader creates an uploader that stores to baseDir/uploads.
func NewUploader(baseDir string) *Uploader {
	return &Uploader{baseDir: filepath.Join(baseDir, common.UploadsDirName)}
}

// AllowedExtension reports whether a filename carries an extension the
// pipeline can process.
func AllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == common.PDFExtension {
		return true
	}
	_, ok := common.ImageExtensions[ext]
	return ok
}

// SaveMultipart stores an uploaded file under a random name, preserving
// the original extension so the resolver can classify it. It returns the
// stored path and a cleanup function deleting the file.
func (u *Uploader) SaveMultipart(fileHeader *multipart.FileHeader, maxBytes int64) (string, func() error, error) {
	if fileHeader == nil {
		return "", nil, fmt.Errorf("no file provided")
	}
	if !AllowedExtension(fileHeader.Filename) {
		return "", nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(fileHeader.Filename))
	}

	if err := os.MkdirAll(u.baseDir, 0o750); err != nil {
		return "", nil, fmt.Errorf("ensure uploads dir: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer func() { _ = src.Close() }()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	dstPath := filepath.Join(u.baseDir, uuid.NewString()+ext)

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600) // #nosec G304 - path built from a fresh uuid under our dir
	if err != nil {
		return "", nil, fmt.Errorf("create tmp file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	limited := io.LimitReader(src, maxBytes)
	if _, err := io.Copy(dst, limited); err != nil {
		_ = os.Remove(dstPath)
		return "", nil, fmt.Errorf("copy upload: %w", err)
	}

	cleanup := func() error {
		return os.Remove(dstPath)
	}
	return dstPath, cleanup, nil
}
