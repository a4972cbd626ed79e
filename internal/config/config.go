package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the test file.
const DefaultPath = "tests.yaml"

// KnownAssertionKinds lists every recognized assertion type string.
var KnownAssertionKinds = []string{
	"contains",
	"not-contains",
	"latency_max",
	"snapshot",
	"regex",
	"json_valid",
	"min_length",
	"max_length",
}

// KnownProviders lists the recognized provider names.
var KnownProviders = []string{"openai", "anthropic", "webhook"}

// Config is the top-level test file.
type Config struct {
	Version  string    `yaml:"version"`
	Defaults Defaults  `yaml:"defaults"`
	Tests    []TestDef `yaml:"tests"`
}

// Defaults applies to every test unless overridden per test.
type Defaults struct {
	Provider    string
	Model       string
	Temperature float64

	temperatureSet bool
}

// UnmarshalYAML tracks whether temperature was present so Load can
// tell an explicit 0.0 apart from an omitted key.
func (d *Defaults) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Provider    string   `yaml:"provider"`
		Model       string   `yaml:"model"`
		Temperature *float64 `yaml:"temperature"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	d.Provider = raw.Provider
	d.Model = raw.Model
	if raw.Temperature != nil {
		d.Temperature = *raw.Temperature
		d.temperatureSet = true
	}
	return nil
}

// TestDef is one test: a prompt template plus inline cases or a bulk
// CSV source. Immutable once loaded.
type TestDef struct {
	ID       string `yaml:"id"`
	Prompt   string `yaml:"prompt"`
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	// Inline cases, ordinal = declaration order.
	Cases []CaseDef `yaml:"cases,omitempty"`
	// CSV file: header row = binding keys, each row = one case.
	CasesFile string `yaml:"cases_file,omitempty"`
	// Default assertions, applied to every case unless overridden.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CaseDef is one inline case declaration.
type CaseDef struct {
	Input      map[string]string `yaml:"input"`
	Assertions []Assertion       `yaml:"assert,omitempty"`
}

// Assertion is a raw (kind, value) pair from the test file. Value may
// contain {{var}} placeholders resolved against the case bindings.
type Assertion struct {
	Kind  string `yaml:"type"`
	Value any    `yaml:"value,omitempty"`
}

// Load reads and parses a test file. It does not validate; callers run
// Validate separately so watch mode can report issues without dying.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if strings.TrimSpace(cfg.Defaults.Provider) == "" {
		cfg.Defaults.Provider = "openai"
	}
	if strings.TrimSpace(cfg.Defaults.Model) == "" {
		cfg.Defaults.Model = "gpt-4o-mini"
	}
	if !cfg.Defaults.temperatureSet {
		cfg.Defaults.Temperature = 0.7
	}

	return &cfg, nil
}

// ProviderFor returns the effective provider name for a test.
func (c *Config) ProviderFor(def *TestDef) string {
	if def != nil && strings.TrimSpace(def.Provider) != "" {
		return strings.TrimSpace(def.Provider)
	}
	return c.Defaults.Provider
}

// ModelFor returns the effective model for a test.
func (c *Config) ModelFor(def *TestDef) string {
	if def != nil && strings.TrimSpace(def.Model) != "" {
		return strings.TrimSpace(def.Model)
	}
	return c.Defaults.Model
}
