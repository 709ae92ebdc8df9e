// Package pipeline drives recognition end to end: resolve inputs into
// image units, encode payloads, call the inference client once per unit,
// and aggregate the extracted text.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vlmocr/vlmocr/internal/common"
	"github.com/vlmocr/vlmocr/internal/encode"
	"github.com/vlmocr/vlmocr/internal/metrics"
	"github.com/vlmocr/vlmocr/internal/render"
	"github.com/vlmocr/vlmocr/internal/source"
	"github.com/vlmocr/vlmocr/internal/vlm"
)

// Runner processes batches of inputs sequentially, one inference call per
// unit. There is no shared mutable state between units beyond the result
// slice, and no retries.
type Runner struct {
	Log    *slog.Logger
	Client vlm.Client
	PDF    render.Backend
	// Model labels metrics; it does not affect the request (the client
	// carries its own model name).
	Model string
}

// Options control one batch run.
type Options struct {
	Prompt        string
	DPI           int
	PageSeparated bool
	IncludeRaw    bool
	// MaxImageDim bounds image dimensions before encoding; zero disables
	// downscaling.
	MaxImageDim int
}

// Run resolves and recognizes every input in order. Per-unit failures are
// recorded in the output and do not stop the batch; a missing PDF backend
// aborts the whole run because it is a configuration error, not a data one.
func (r *Runner) Run(ctx context.Context, inputs []string, opts Options) (*Output, error) {
	if opts.Prompt == "" {
		opts.Prompt = common.DefaultPrompt
	}
	if opts.DPI <= 0 {
		opts.DPI = common.DefaultDPI
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var results []UnitResult
	for _, input := range inputs {
		images, err := source.Resolve(ctx, input, opts.DPI, r.PDF)
		if err != nil {
			if errors.Is(err, render.ErrUnavailable) {
				return nil, err
			}
			log.Error("resolve input failed", "input", input, "err", err)
			results = append(results, UnitResult{Input: input, Page: 1, Error: err.Error()})
			metrics.RecordUnit(metrics.OutcomeError)
			continue
		}

		total := len(images)
		for _, img := range images {
			results = append(results, r.processUnit(ctx, input, img, total, opts))
		}
	}
	return Aggregate(results, opts.PageSeparated), nil
}

func (r *Runner) processUnit(ctx context.Context, input string, img source.Image, total int, opts Options) UnitResult {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	unit := UnitResult{Input: input, Page: img.Page}

	payload, err := r.buildPayload(img, opts.MaxImageDim)
	if err != nil {
		log.Error("encode unit failed", "input", input, "page", img.Page, "err", err)
		unit.Error = err.Error()
		metrics.RecordUnit(metrics.OutcomeError)
		return unit
	}

	prompt := opts.Prompt
	if total > 1 {
		prompt = fmt.Sprintf("%s (Page %d/%d)", prompt, img.Page, total)
	}

	start := time.Now()
	res, err := r.Client.Recognize(ctx, vlm.Request{Prompt: prompt, Payload: payload})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Error("inference failed", "input", input, "page", img.Page, "err", err)
		unit.Error = err.Error()
		metrics.RecordInference(r.Model, metrics.OutcomeError, elapsed)
		metrics.RecordUnit(metrics.OutcomeError)
		return unit
	}

	unit.Text = res.Text
	if opts.IncludeRaw {
		unit.Raw = res.Raw
	}
	metrics.RecordInference(r.Model, metrics.OutcomeOK, elapsed)
	metrics.RecordUnit(metrics.OutcomeOK)
	log.Info("unit recognized", "input", input, "page", img.Page, "chars", len(res.Text), "duration", time.Since(start).String())
	return unit
}

func (r *Runner) buildPayload(img source.Image, maxDim int) (string, error) {
	if img.Remote() {
		return img.URL, nil
	}
	data := img.Data
	if maxDim > 0 {
		scaled, err := encode.Downscale(data, maxDim)
		if err != nil {
			return "", err
		}
		data = scaled
	}
	return encode.DataURI(data)
}

// UnitResult is the outcome for one image unit. Failed units carry an
// Error message and keep their place in the sequence so callers see
// partial results.
type UnitResult struct {
	Input string          `json:"input"`
	Page  int             `json:"page"`
	Text  string          `json:"text"`
	Error string          `json:"error,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Failed reports whether the unit errored.
func (u UnitResult) Failed() bool { return u.Error != "" }
