package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in model profile IDs.
const (
	ProfileIDPrimary = "qwen2-vl-32b"
	ProfileIDHF      = "qwen2.5-vl-7b"
)

// ModelProfile describes one inference endpoint the pipeline can talk to.
type ModelProfile struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	APIURL string `yaml:"apiUrl"`
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// Configured reports whether the profile has the credentials it needs.
func (p ModelProfile) Configured() bool {
	return strings.TrimSpace(p.APIURL) != "" && strings.TrimSpace(p.APIKey) != ""
}

// Registry holds model profiles in registration order.
type Registry struct {
	order []string
	byID  map[string]ModelProfile
}

// NewRegistry builds the registry from the built-in profiles plus any
// profiles declared in the optional MODELS_CONFIG YAML file. File entries
// with an ID matching a built-in profile override it.
func NewRegistry(cfg *Config) (*Registry, error) {
	r := &Registry{byID: make(map[string]ModelProfile)}
	r.add(ModelProfile{
		ID:     ProfileIDPrimary,
		Name:   "Qwen2-VL 32B (Local)",
		APIURL: cfg.Primary.APIURL,
		APIKey: cfg.Primary.APIKey,
		Model:  cfg.Primary.Model,
	})
	r.add(ModelProfile{
		ID:     ProfileIDHF,
		Name:   "Qwen2.5-VL 7B (Hugging Face)",
		APIURL: cfg.HF.APIURL,
		APIKey: cfg.HF.APIKey,
		Model:  cfg.HF.Model,
	})

	if cfg.ModelsFile != "" {
		extra, err := loadProfilesFile(cfg.ModelsFile)
		if err != nil {
			return nil, err
		}
		for _, p := range extra {
			r.add(p)
		}
	}
	return r, nil
}

func (r *Registry) add(p ModelProfile) {
	if _, exists := r.byID[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// Get returns the profile with the given ID.
func (r *Registry) Get(id string) (ModelProfile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Default returns the first configured profile, falling back to the first
// registered one when none has credentials.
func (r *Registry) Default() ModelProfile {
	for _, id := range r.order {
		if p := r.byID[id]; p.Configured() {
			return p
		}
	}
	return r.byID[r.order[0]]
}

// List returns all profiles in registration order.
func (r *Registry) List() []ModelProfile {
	out := make([]ModelProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

type profilesFile struct {
	Models []ModelProfile `yaml:"models"`
}

// loadProfilesFile reads a YAML profile file, expanding ${VAR} references
// from the environment so keys can stay out of the file itself.
func loadProfilesFile(path string) ([]ModelProfile, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	if err != nil {
		return nil, fmt.Errorf("read models config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var f profilesFile
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}
	for i, p := range f.Models {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("models config entry %d: id is required", i)
		}
		if strings.TrimSpace(p.Model) == "" {
			return nil, fmt.Errorf("models config entry %q: model is required", p.ID)
		}
	}
	return f.Models, nil
}
