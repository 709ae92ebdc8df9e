// Package openaichat implements vlm.Client against an OpenAI-compatible
// chat-completions endpoint.
package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vlmocr/vlmocr/internal/common"
	"github.com/vlmocr/vlmocr/internal/vlm"
)

var _ vlm.Client = (*Client)(nil)

// Role represents the sender role for a chat message.
type Role string

const RoleUser Role = "user"

// PartType represents the type for a multimodal message part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Options configure a Client. Endpoint is the full chat-completions URL,
// not a base URL; deployments point it directly at their route.
type Options struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client calls a chat-completions endpoint with one image per request.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// New creates a chat-completions client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = common.DefaultTimeoutSeconds * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = timeout
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimSpace(opts.Endpoint),
		apiKey:     opts.APIKey,
		model:      opts.Model,
	}
}

// Recognize implements vlm.Client. The response is parsed permissively: a
// body without the expected choices shape yields empty text rather than an
// error, because some endpoints return bare objects for filtered content.
func (c *Client) Recognize(ctx context.Context, req vlm.Request) (vlm.Result, error) {
	if c.endpoint == "" {
		return vlm.Result{}, errors.New("inference endpoint is not configured")
	}

	bodyBytes, err := json.Marshal(c.buildRequestBody(req))
	if err != nil {
		return vlm.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return vlm.Result{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set(common.HeaderContentType, common.ContentTypeJSON)
	if strings.TrimSpace(c.apiKey) != "" {
		httpReq.Header.Set(common.HeaderAuthorization, common.AuthSchemeBearer+" "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return vlm.Result{}, fmt.Errorf("%w: %v", vlm.ErrTimeout, err)
		}
		return vlm.Result{}, fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return vlm.Result{}, &vlm.APIError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBytes), common.ErrorSnippetLimit),
		}
	}

	var comp chatCompletionResponse
	if err := json.Unmarshal(respBytes, &comp); err != nil {
		return vlm.Result{Raw: respBytes}, nil
	}
	text := ""
	if len(comp.Choices) > 0 {
		text = comp.Choices[0].Message.Content
	}
	return vlm.Result{Text: text, Raw: respBytes}, nil
}

func (c *Client) buildRequestBody(req vlm.Request) chatCompletionRequest {
	prompt := req.Prompt
	return chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: RoleUser,
				Content: []messagePart{
					{Type: PartText, Text: &prompt},
					{Type: PartImageURL, ImageURL: &imageURL{URL: req.Payload}},
				},
			},
		},
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OpenAI-compatible Chat Completions request/response types

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    Role          `json:"role"`
	Content []messagePart `json:"content"`
}

type messagePart struct {
	Type     PartType  `json:"type"`                // "text" | "image_url"
	Text     *string   `json:"text,omitempty"`      // when Type == "text"
	ImageURL *imageURL `json:"image_url,omitempty"` // when Type == "image_url"
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Choices []chatCompletionChoice `json:"choices"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      responseMsg `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type responseMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
