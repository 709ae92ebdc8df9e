// Command vlmocr sends images and PDF pages to a vision-language model
// endpoint and prints the extracted text.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vlmocr/vlmocr/internal/config"
	"github.com/vlmocr/vlmocr/internal/pipeline"
	"github.com/vlmocr/vlmocr/internal/render"
	"github.com/vlmocr/vlmocr/internal/vlm"
	"github.com/vlmocr/vlmocr/internal/vlm/mock"
	"github.com/vlmocr/vlmocr/internal/vlm/openaichat"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		return 1
	}
	registry, err := config.NewRegistry(cfg)
	if err != nil {
		logger.Error("load model profiles", "err", err)
		return 1
	}
	profile := registry.Default()

	var (
		prompt         = flag.String("prompt", cfg.Defaults.Prompt, "OCR prompt sent with every image")
		modelID        = flag.String("model-id", "", "model profile to use (see MODELS_CONFIG)")
		apiURL         = flag.String("api-url", "", "inference endpoint URL (overrides the profile)")
		apiKey         = flag.String("api-key", "", "inference API key (overrides the profile)")
		model          = flag.String("model", "", "model name (overrides the profile)")
		dpi            = flag.Int("dpi", cfg.Defaults.DPI, "DPI for PDF rasterization")
		timeout        = flag.Duration("timeout", cfg.Defaults.RequestTimeout, "per-request timeout")
		output         = flag.String("output", "", "write the result to a file instead of stdout only")
		jsonOut        = flag.Bool("json", false, "print the full result as JSON, including raw responses")
		separatePages  = flag.Bool("separate-pages", false, "group output by source page")
		ignoreFailures = flag.Bool("ignore-failures", false, "exit 0 even when some units failed")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file-or-url> [more files...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		flag.Usage()
		return 2
	}

	if *modelID != "" {
		p, ok := registry.Get(*modelID)
		if !ok {
			logger.Error("unknown model profile", "model_id", *modelID)
			return 1
		}
		profile = p
	}
	if *apiURL != "" {
		profile.APIURL = *apiURL
	}
	if *apiKey != "" {
		profile.APIKey = *apiKey
	}
	if *model != "" {
		profile.Model = *model
	}

	client, err := newClient(cfg, profile, *timeout)
	if err != nil {
		logger.Error("configure inference client", "err", err)
		return 1
	}

	backend, err := render.Detect()
	if err != nil {
		logger.Warn("pdf rendering unavailable; pdf inputs will fail", "err", err)
		backend = nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := &pipeline.Runner{
		Log:    logger,
		Client: client,
		PDF:    backend,
		Model:  profile.Model,
	}
	logger.Info("processing", "files", len(inputs), "model", profile.Model)

	out, err := runner.Run(ctx, inputs, pipeline.Options{
		Prompt:        *prompt,
		DPI:           *dpi,
		PageSeparated: *separatePages,
		IncludeRaw:    *jsonOut,
		MaxImageDim:   cfg.Defaults.MaxImageDim,
	})
	if err != nil {
		logger.Error("processing aborted", "err", err)
		return 1
	}

	text, err := formatOutput(out, *jsonOut)
	if err != nil {
		logger.Error("format output", "err", err)
		return 1
	}
	fmt.Println(text)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(text+"\n"), 0o644); err != nil {
			logger.Error("write output file", "path", *output, "err", err)
			return 1
		}
		logger.Info("result saved", "path", *output)
	}

	if out.Failed() && !*ignoreFailures {
		return 1
	}
	return 0
}

func newClient(cfg *config.Config, profile config.ModelProfile, timeout time.Duration) (vlm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "mock":
		return mock.New(mock.Settings{}), nil
	default:
		if strings.TrimSpace(profile.APIURL) == "" {
			return nil, fmt.Errorf("no inference endpoint configured (set API_URL or -api-url)")
		}
		return openaichat.New(openaichat.Options{
			Endpoint: profile.APIURL,
			APIKey:   profile.APIKey,
			Model:    profile.Model,
			Timeout:  timeout,
		}), nil
	}
}

func formatOutput(out *pipeline.Output, asJSON bool) (string, error) {
	if !asJSON {
		return out.Render(), nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
