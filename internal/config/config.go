// Package config manages AIPM project configuration stored in aipm.yaml
// at the project root. Values can be overridden through AIPM_* environment
// variables with double underscore between sections
// (e.g. AIPM_COPILOT__MODEL).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file that marks an AIPM project root.
const FileName = "aipm.yaml"

// DefaultModel is the inference model used when none is configured.
const DefaultModel = "claude-haiku-4.5"

// DefaultBaseURL is the OpenAI-compatible Copilot endpoint.
const DefaultBaseURL = "https://api.githubcopilot.com"

// Source configures a single issue source (Jira or GitHub).
type Source struct {
	Type       string `koanf:"type" yaml:"type"`
	URL        string `koanf:"url" yaml:"url"`
	ProjectKey string `koanf:"project_key" yaml:"project_key,omitempty"`
	Filter     string `koanf:"filter" yaml:"filter,omitempty"`
	Name       string `koanf:"name" yaml:"name,omitempty"`
}

// DisplayName returns the best human-readable name for a source.
func (s Source) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ProjectKey != "":
		return s.ProjectKey
	default:
		return s.Type
	}
}

// Project holds project identity settings.
type Project struct {
	Name        string `koanf:"name" yaml:"name"`
	Description string `koanf:"description" yaml:"description,omitempty"`
	OutputDir   string `koanf:"output_dir" yaml:"output_dir"`
}

// Copilot holds inference service settings.
type Copilot struct {
	Model   string `koanf:"model" yaml:"model,omitempty"`
	BaseURL string `koanf:"base_url" yaml:"base_url,omitempty"`
}

// Config is the full AIPM project configuration.
type Config struct {
	Project Project  `koanf:"project" yaml:"project"`
	Copilot Copilot  `koanf:"copilot" yaml:"copilot,omitempty"`
	Sources []Source `koanf:"sources" yaml:"sources,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Project: Project{OutputDir: "generated"},
	}
}

// Model returns the configured inference model, or the default.
func (c *Config) Model() string {
	if c.Copilot.Model != "" {
		return c.Copilot.Model
	}
	return DefaultModel
}

// BaseURL returns the configured inference endpoint, or the default.
func (c *Config) BaseURL() string {
	if c.Copilot.BaseURL != "" {
		return c.Copilot.BaseURL
	}
	return DefaultBaseURL
}

// Load reads aipm.yaml from the project root, applying AIPM_* environment
// overrides on top.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, FileName)
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("cannot read project config at %s: %w", path, err)
	}
	// Double underscore separates config sections so keys that contain
	// underscores stay addressable: AIPM_COPILOT__MODEL overrides
	// copilot.model, AIPM_PROJECT__OUTPUT_DIR overrides
	// project.output_dir.
	if err := k.Load(env.Provider("AIPM_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "AIPM_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Save writes the configuration to aipm.yaml in the project root.
func (c *Config) Save(projectRoot string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(projectRoot, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FindRoot searches upward from start for a directory containing aipm.yaml.
// Returns the empty string when no project is found.
func FindRoot(start string) string {
	current, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(current, FileName)); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// RootFromCWD locates the project root from the current working directory.
func RootFromCWD() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return FindRoot(cwd)
}
