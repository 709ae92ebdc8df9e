// Package vlm defines the client capability for the remote vision-language
// inference endpoint, plus the error kinds callers dispatch on.
package vlm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is one recognition call: a prompt and a single image payload,
// which is either a remote URL or a base64 data URI.
type Request struct {
	Prompt  string
	Payload string
}

// Result carries the extracted text and, for callers that want it, the raw
// response body as returned by the endpoint.
type Result struct {
	Text string
	Raw  json.RawMessage
}

// Client performs one inference call per image. Implementations do not
// retry; a request is attempted exactly once.
type Client interface {
	Recognize(ctx context.Context, req Request) (Result, error)
}

// ErrTimeout marks a request that exceeded the configured deadline. It is
// a per-unit failure: remaining units in a batch are still attempted.
var ErrTimeout = errors.New("inference request timed out")

// APIError is a non-2xx response from the endpoint. Body holds a truncated
// excerpt of the response body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inference api status %d: %s", e.StatusCode, e.Body)
}
