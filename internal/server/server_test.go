package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/vlmocr/vlmocr/internal/config"
	"github.com/vlmocr/vlmocr/internal/storage"
	"github.com/vlmocr/vlmocr/internal/vlm"
)

type fixedClient struct {
	text string
	err  error
}

func (c *fixedClient) Recognize(context.Context, vlm.Request) (vlm.Result, error) {
	if c.err != nil {
		return vlm.Result{}, c.err
	}
	return vlm.Result{Text: c.text, Raw: []byte(`{"choices":[]}`)}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:          "127.0.0.1",
			Port:          0,
			MaxFileSizeMB: 16,
			UploadDir:     t.TempDir(),
			ReadTimeout:   time.Second,
			WriteTimeout:  time.Second,
			IdleTimeout:   time.Second,
		},
		Primary: config.PrimaryModel{
			APIURL: "http://vlm.local/v1/chat/completions",
			APIKey: "key",
			Model:  "qwen2-vl",
		},
		Defaults: config.DefaultsConfig{
			DPI:            200,
			Prompt:         "OCR this image and extract all text.",
			RequestTimeout: time.Second,
		},
	}
}

func testService(t *testing.T, client vlm.Client) *Service {
	t.Helper()
	cfg := testConfig(t)
	reg, err := config.NewRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &Service{
		Cfg:      cfg,
		Registry: reg,
		Uploader: storage.NewUploader(cfg.Server.UploadDir),
		ClientFactory: func(config.ModelProfile) vlm.Client {
			return client
		},
	}
}

func uploadRequest(t *testing.T, path string, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestConfigReadback(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Models []struct {
			ID         string `json:"id"`
			Configured bool   `json:"configured"`
			APIURL     string `json:"api_url"`
		} `json:"models"`
		MaxFileSize       string   `json:"max_file_size"`
		AllowedExtensions []string `json:"allowed_extensions"`
		Status            string   `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models = %d, want 2", len(body.Models))
	}
	if !body.Models[0].Configured || body.Models[0].ID != config.ProfileIDPrimary {
		t.Errorf("primary model = %+v", body.Models[0])
	}
	// Unconfigured profiles must not leak their URL.
	if body.Models[1].Configured || body.Models[1].APIURL != "NOT_CONFIGURED" {
		t.Errorf("hf model = %+v", body.Models[1])
	}
	if body.MaxFileSize != "16MB" || body.Status != "ready" {
		t.Errorf("max_file_size = %q status = %q", body.MaxFileSize, body.Status)
	}
	if len(body.AllowedExtensions) == 0 {
		t.Errorf("allowed_extensions missing")
	}
}

func TestOCRUploadSuccess(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "extracted"}))
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/ocr", "scan.png", []byte("png-bytes"), map[string]string{
		"prompt": "read it",
	})
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body ocrResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Type != "image" || body.Pages != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.Filename != "scan.png" {
		t.Errorf("filename = %q", body.Filename)
	}
	if body.Text != "extracted" {
		t.Errorf("text = %q", body.Text)
	}
	if len(body.Results) != 1 || body.Results[0].Text != "extracted" {
		t.Errorf("results = %+v", body.Results)
	}
}

func TestOCRUploadCleansTempFile(t *testing.T) {
	svc := testService(t, &fixedClient{text: "x"})
	srv := NewHTTPServer(svc)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, uploadRequest(t, "/api/ocr", "scan.jpg", []byte("bytes"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// A second save under the same uploader must find an empty dir pattern:
	// nothing asserts directly on the dir layout here, but the uploaded file
	// path is embedded in results[0].input and must be gone.
	var body ocrResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 1 {
		t.Fatalf("results = %+v", body.Results)
	}
	if _, err := os.Stat(body.Results[0].Input); err == nil {
		t.Errorf("uploaded temp file %q still exists", body.Results[0].Input)
	}
}

func TestOCRUploadRejectsMissingFile(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, uploadRequest(t, "/api/ocr", "", nil, map[string]string{"prompt": "p"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOCRUploadRejectsBadExtension(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, uploadRequest(t, "/api/ocr", "notes.txt", []byte("hi"), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success {
		t.Errorf("success should be false")
	}
}

func TestOCRUploadRejectsUnknownModel(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/ocr", "scan.png", []byte("x"), map[string]string{"model_id": "nope"})
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOCRUploadUnconfiguredModel(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{text: "x"}))
	rec := httptest.NewRecorder()
	// The HF profile has no key in testConfig.
	req := uploadRequest(t, "/api/ocr", "scan.png", []byte("x"), map[string]string{"model_id": config.ProfileIDHF})
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOCRUploadFailedUnitStillSucceedsHTTP(t *testing.T) {
	srv := NewHTTPServer(testService(t, &fixedClient{err: &vlm.APIError{StatusCode: 502, Body: "bad gateway"}}))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, uploadRequest(t, "/api/ocr", "scan.png", []byte("x"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ocrResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Results) != 1 || body.Results[0].Error == "" {
		t.Errorf("results = %+v, want failed unit surfaced", body.Results)
	}
}
