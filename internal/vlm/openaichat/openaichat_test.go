package openaichat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vlmocr/vlmocr/internal/vlm"
)

func completionBody(text string) string {
	return `{"id":"cmpl-1","object":"chat.completion","created":1,` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":` +
		jsonString(text) + `},"finish_reason":"stop"}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestRecognizeRequestShape(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("request body is not json: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("extracted text"))
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, APIKey: "secret", Model: "qwen2-vl"})
	res, err := client.Recognize(context.Background(), vlm.Request{
		Prompt:  "OCR this image and extract all text.",
		Payload: "data:image/png;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("Recognize error: %v", err)
	}
	if res.Text != "extracted text" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Raw) == 0 {
		t.Errorf("Raw response missing")
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "qwen2-vl" {
		t.Errorf("model = %v", gotBody["model"])
	}
	messages, ok := gotBody["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("messages = %v, want one user message", gotBody["messages"])
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" {
		t.Errorf("role = %v", msg["role"])
	}
	content, ok := msg["content"].([]any)
	if !ok || len(content) != 2 {
		t.Fatalf("content = %v, want two parts", msg["content"])
	}
	textPart := content[0].(map[string]any)
	imagePart := content[1].(map[string]any)
	if textPart["type"] != "text" || textPart["text"] != "OCR this image and extract all text." {
		t.Errorf("text part = %v", textPart)
	}
	if imagePart["type"] != "image_url" {
		t.Errorf("image part type = %v", imagePart["type"])
	}
	imgURL := imagePart["image_url"].(map[string]any)
	if imgURL["url"] != "data:image/png;base64,AAAA" {
		t.Errorf("image url = %v", imgURL["url"])
	}
}

func TestRecognizeNoAuthHeaderWithoutKey(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = io.WriteString(w, completionBody("x"))
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, Model: "m"})
	if _, err := client.Recognize(context.Background(), vlm.Request{Prompt: "p", Payload: "u"}); err != nil {
		t.Fatalf("Recognize error: %v", err)
	}
	if sawAuth {
		t.Errorf("Authorization header sent without a configured key")
	}
}

func TestRecognizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 600))
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, Model: "m"})
	_, err := client.Recognize(context.Background(), vlm.Request{Prompt: "p", Payload: "u"})

	var apiErr *vlm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *vlm.APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if len(apiErr.Body) > 420 {
		t.Errorf("Body excerpt not truncated: %d bytes", len(apiErr.Body))
	}
}

func TestRecognizePermissiveParsing(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no choices", `{"object":"chat.completion","choices":[]}`},
		{"missing content", `{"choices":[{"message":{"role":"assistant"}}]}`},
		{"not even json", `<html>gateway error page that lied about its status</html>`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, c.body)
			}))
			defer srv.Close()

			client := New(Options{Endpoint: srv.URL, Model: "m"})
			res, err := client.Recognize(context.Background(), vlm.Request{Prompt: "p", Payload: "u"})
			if err != nil {
				t.Fatalf("Recognize error: %v", err)
			}
			if res.Text != "" {
				t.Errorf("Text = %q, want empty", res.Text)
			}
		})
	}
}

func TestRecognizeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, completionBody("late"))
	}))
	defer srv.Close()

	client := New(Options{Endpoint: srv.URL, Model: "m", Timeout: 30 * time.Millisecond})
	_, err := client.Recognize(context.Background(), vlm.Request{Prompt: "p", Payload: "u"})
	if !errors.Is(err, vlm.ErrTimeout) {
		t.Fatalf("err = %v, want vlm.ErrTimeout", err)
	}
}
