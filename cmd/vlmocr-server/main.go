// Command vlmocr-server exposes the OCR pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vlmocr/vlmocr/internal/config"
	"github.com/vlmocr/vlmocr/internal/metrics"
	"github.com/vlmocr/vlmocr/internal/render"
	"github.com/vlmocr/vlmocr/internal/server"
	"github.com/vlmocr/vlmocr/internal/storage"
	"github.com/vlmocr/vlmocr/internal/vlm"
	"github.com/vlmocr/vlmocr/internal/vlm/mock"
	"github.com/vlmocr/vlmocr/internal/vlm/openaichat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	metrics.Register()

	registry, err := config.NewRegistry(cfg)
	if err != nil {
		logger.Error("load model profiles", "err", err)
		os.Exit(1)
	}

	backend, err := render.Detect()
	if err != nil {
		logger.Warn("pdf rendering unavailable; pdf uploads will be rejected", "err", err)
		backend = nil
	} else {
		logger.Info("pdf rendering enabled", "backend", backend.Name())
	}

	svc := &server.Service{
		Log:      logger,
		Cfg:      cfg,
		Registry: registry,
		Uploader: storage.NewUploader(cfg.Server.UploadDir),
		PDF:      backend,
		ClientFactory: func(profile config.ModelProfile) vlm.Client {
			if strings.EqualFold(strings.TrimSpace(cfg.Provider), "mock") {
				return mock.New(mock.Settings{})
			}
			return openaichat.New(openaichat.Options{
				Endpoint: profile.APIURL,
				APIKey:   profile.APIKey,
				Model:    profile.Model,
				Timeout:  cfg.Defaults.RequestTimeout,
			})
		},
	}

	httpSrv := server.NewHTTPServer(svc)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		logger.Error("server failed", "err", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
