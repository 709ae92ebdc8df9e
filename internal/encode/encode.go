// Package encode converts raw image bytes into the data-URI payload form
// the inference API's message schema expects.
package encode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"

	// Registered decoders for format sniffing. The stdlib covers png, jpeg
	// and gif; bmp and webp come from golang.org/x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned for payloads that cannot possibly encode an
// image. Sniffing failures are not errors; unknown formats default to png.
var ErrInvalidImage = errors.New("invalid image payload")

const (
	dataURLPrefix    = "data:"
	dataURLBase64Sep = ";base64,"
	defaultFormat    = "png"
)

// DataURI encodes image bytes as a base64 data URI, with the mime subtype
// sniffed from the bytes themselves. Pure and deterministic: identical
// input always yields identical output, and distinct inputs of the same
// detected format yield distinct URIs.
func DataURI(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrInvalidImage
	}
	format := sniffFormat(data)
	enc := base64.StdEncoding.EncodeToString(data)
	return dataURLPrefix + "image/" + format + dataURLBase64Sep + enc, nil
}

func sniffFormat(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format == "" {
		return defaultFormat
	}
	return format
}
