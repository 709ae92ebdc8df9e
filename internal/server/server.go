// Package server exposes the recognition pipeline over HTTP: an upload
// endpoint, a configuration readback endpoint, a liveness endpoint and
// Prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vlmocr/vlmocr/internal/common"
	"github.com/vlmocr/vlmocr/internal/config"
	"github.com/vlmocr/vlmocr/internal/metrics"
	"github.com/vlmocr/vlmocr/internal/pipeline"
	"github.com/vlmocr/vlmocr/internal/render"
	"github.com/vlmocr/vlmocr/internal/storage"
	"github.com/vlmocr/vlmocr/internal/vlm"
)

// Service wires the HTTP handlers to the pipeline.
type Service struct {
	Log      *slog.Logger
	Cfg      *config.Config
	Registry *config.Registry
	Uploader *storage.Uploader
	PDF      render.Backend
	// ClientFactory builds an inference client for a model profile.
	// Tests substitute fakes here.
	ClientFactory func(profile config.ModelProfile) vlm.Client
}

func (svc *Service) logger() *slog.Logger {
	if svc.Log != nil {
		return svc.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+common.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc(http.MethodGet+" "+common.PathConfig, svc.handleConfig)
	mux.HandleFunc(http.MethodPost+" "+common.PathOCR, svc.withUploadCap(svc.handleOCR))
	mux.Handle(http.MethodGet+" "+common.PathMetrics, promhttp.Handler())

	return &http.Server{
		Addr:         svc.Cfg.Addr(),
		Handler:      loggingMiddleware(recoveryMiddleware(metricsMiddleware(mux)), svc.Log),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
}

func (svc *Service) withUploadCap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if max := svc.Cfg.MaxUploadBytes(); max > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		next.ServeHTTP(w, r)
	}
}

type ocrResponse struct {
	Success       bool                  `json:"success"`
	Filename      string                `json:"filename"`
	Type          string                `json:"type"`
	Pages         int                   `json:"pages"`
	PageSeparated bool                  `json:"page_separated"`
	Results       []pipeline.UnitResult `json:"results"`
	Text          string                `json:"text"`
}

func (svc *Service) handleOCR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(svc.Cfg.MaxUploadBytes()); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %dMB", svc.Cfg.Server.MaxFileSizeMB))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	fileHeaders := r.MultipartForm.File["file"]
	if len(fileHeaders) == 0 {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	uploaded := fileHeaders[0]
	if uploaded.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !storage.AllowedExtension(uploaded.Filename) {
		writeError(w, http.StatusBadRequest,
			"File type not allowed. Allowed types: "+strings.Join(common.AllowedExtensions, ", "))
		return
	}

	profile, ok := svc.resolveProfile(r.FormValue("model_id"))
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid model_id: %s. Available models: %s",
				r.FormValue("model_id"), strings.Join(svc.profileIDs(), ", ")))
		return
	}
	if !profile.Configured() {
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("Model %s is not configured. Missing API key.", profile.Name))
		return
	}

	opts := pipeline.Options{
		Prompt:        strings.TrimSpace(r.FormValue("prompt")),
		DPI:           svc.parseDPI(r.FormValue("dpi")),
		PageSeparated: parseBool(r.FormValue("separate_pages")),
		IncludeRaw:    true,
		MaxImageDim:   svc.Cfg.Defaults.MaxImageDim,
	}
	if opts.Prompt == "" {
		opts.Prompt = svc.Cfg.Defaults.Prompt
	}

	path, cleanup, err := svc.Uploader.SaveMultipart(uploaded, svc.Cfg.MaxUploadBytes())
	if err != nil {
		writeError(w, http.StatusBadRequest, "upload failed: "+err.Error())
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			svc.logger().Warn("upload cleanup failed", "err", err)
		}
	}()

	runner := &pipeline.Runner{
		Log:    svc.logger(),
		Client: svc.ClientFactory(profile),
		PDF:    svc.PDF,
		Model:  profile.Model,
	}
	out, err := runner.Run(r.Context(), []string{path}, opts)
	if err != nil {
		svc.logger().Error("pipeline run failed", "filename", uploaded.Filename, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fileType := "image"
	if strings.ToLower(filepath.Ext(uploaded.Filename)) == common.PDFExtension {
		fileType = "pdf"
	}
	writeJSON(w, http.StatusOK, ocrResponse{
		Success:       true,
		Filename:      uploaded.Filename,
		Type:          fileType,
		Pages:         len(out.Results),
		PageSeparated: out.PageSeparated,
		Results:       out.Results,
		Text:          out.Render(),
	})
}

type configModel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	APIURL     string `json:"api_url"`
}

func (svc *Service) handleConfig(w http.ResponseWriter, r *http.Request) {
	models := make([]configModel, 0)
	anyConfigured := false
	for _, p := range svc.Registry.List() {
		m := configModel{ID: p.ID, Name: p.Name, Configured: p.Configured(), APIURL: "NOT_CONFIGURED"}
		if p.Configured() {
			m.APIURL = p.APIURL
			anyConfigured = true
		}
		models = append(models, m)
	}

	status := "ready"
	if !anyConfigured {
		status = "missing_config"
	}
	pdfBackend := ""
	if svc.PDF != nil {
		pdfBackend = svc.PDF.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":             models,
		"max_file_size":      fmt.Sprintf("%dMB", svc.Cfg.Server.MaxFileSizeMB),
		"allowed_extensions": common.AllowedExtensions,
		"pdf_backend":        pdfBackend,
		"status":             status,
	})
}

func (svc *Service) resolveProfile(id string) (config.ModelProfile, bool) {
	if strings.TrimSpace(id) == "" {
		return svc.Registry.Default(), true
	}
	return svc.Registry.Get(id)
}

func (svc *Service) profileIDs() []string {
	list := svc.Registry.List()
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids
}

func (svc *Service) parseDPI(raw string) int {
	if raw == "" {
		return svc.Cfg.Defaults.DPI
	}
	dpi, err := strconv.Atoi(raw)
	if err != nil || dpi <= 0 {
		return svc.Cfg.Defaults.DPI
	}
	return dpi
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(common.HeaderContentType, common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	// Fallback to a discard logger if none provided to avoid nil deref in tests or minimal setups.
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.code,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.RecordRequest(r.Method, r.URL.Path, ww.code, time.Since(start).Seconds())
	})
}

type writeWrap struct {
	http.ResponseWriter
	code int
}

func (w *writeWrap) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
