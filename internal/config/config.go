package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is the root configuration, populated from the environment.
// Values map one to one onto env vars so deployments can keep using the
// same .env files as before.
type Config struct {
	Server   ServerConfig
	Primary  PrimaryModel
	HF       HFModel
	Defaults DefaultsConfig

	// Provider selects the inference client implementation: "openai" or "mock".
	Provider string `env:"VLM_PROVIDER" envDefault:"openai"`

	// ModelsFile optionally points at a YAML file with additional model profiles.
	ModelsFile string `env:"MODELS_CONFIG"`
}

// ServerConfig holds HTTP server settings for the web surface.
type ServerConfig struct {
	Host          string        `env:"HOST" envDefault:"0.0.0.0"`
	Port          int           `env:"PORT" envDefault:"5000"`
	MaxFileSizeMB int           `env:"MAX_FILE_SIZE_MB" envDefault:"16"`
	UploadDir     string        `env:"UPLOAD_FOLDER" envDefault:"uploads"`
	ReadTimeout   time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout  time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout   time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownGrace time.Duration `env:"SERVER_SHUTDOWN_GRACE" envDefault:"15s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// PrimaryModel is the locally hosted model endpoint.
type PrimaryModel struct {
	APIURL string `env:"API_URL"`
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"qwen2-vl-32b-instruct-awq"`
}

// HFModel is the Hugging Face router endpoint.
type HFModel struct {
	APIURL string `env:"HF_API_URL" envDefault:"https://router.huggingface.co/v1/chat/completions"`
	APIKey string `env:"HF_API_KEY"`
	Model  string `env:"HF_MODEL" envDefault:"Qwen/Qwen2.5-VL-7B-Instruct:hyperbolic"`
}

// DefaultsConfig holds pipeline defaults applied when a caller omits a value.
type DefaultsConfig struct {
	DPI            int           `env:"DEFAULT_DPI" envDefault:"200"`
	Prompt         string        `env:"OCR_PROMPT" envDefault:"OCR this image and extract all text."`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"300s"`
	MaxImageDim    int           `env:"MAX_IMAGE_DIMENSION" envDefault:"1024"`
}

// Load reads an optional .env file, parses the environment into a Config,
// and validates it.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set by the host.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", cfg.Server.Port)
	}
	if cfg.Server.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", cfg.Server.MaxFileSizeMB)
	}
	if cfg.Defaults.DPI <= 0 {
		return fmt.Errorf("DEFAULT_DPI must be positive, got %d", cfg.Defaults.DPI)
	}
	if cfg.Defaults.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if cfg.Defaults.MaxImageDim < 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must not be negative, got %d", cfg.Defaults.MaxImageDim)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai", "mock":
	default:
		return fmt.Errorf("unsupported VLM_PROVIDER %q", cfg.Provider)
	}
	return nil
}

// MaxUploadBytes returns the configured upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxFileSizeMB) * 1024 * 1024
}

// Addr returns the host:port the server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SlogLevel maps the configured log level string onto a slog level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Server.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
