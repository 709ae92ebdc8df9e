// Package mock provides a vlm.Client for tests and offline runs.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vlmocr/vlmocr/internal/vlm"
)

var _ vlm.Client = (*Client)(nil)

// Settings configure the mock client.
type Settings struct {
	// Delay simulates inference latency per request.
	Delay time.Duration
	// Prefix is prepended to the echoed prompt in the fake result.
	Prefix string
}

// Client returns canned results without any network access.
type Client struct {
	settings Settings
	calls    int
}

// New creates a mock client.
func New(settings Settings) *Client {
	if settings.Prefix == "" {
		settings.Prefix = "Recognized by mock"
	}
	return &Client{settings: settings}
}

// Recognize implements vlm.Client.
func (c *Client) Recognize(ctx context.Context, req vlm.Request) (vlm.Result, error) {
	if c.settings.Delay > 0 {
		select {
		case <-time.After(c.settings.Delay):
		case <-ctx.Done():
			return vlm.Result{}, ctx.Err()
		}
	}
	c.calls++
	text := fmt.Sprintf("%s: %s", c.settings.Prefix, req.Prompt)
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
	return vlm.Result{Text: text, Raw: raw}, nil
}

// Calls reports how many requests the client has served.
func (c *Client) Calls() int { return c.calls }
