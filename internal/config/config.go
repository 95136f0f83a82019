// Package config loads the wheelforge.yaml build configuration and layers
// environment variables over it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dosanma1/wheelforge/internal/pipeline"
	"github.com/dosanma1/wheelforge/internal/template"
	"github.com/dosanma1/wheelforge/pkg/xos"
)

// FileName is the default configuration file name.
const FileName = "wheelforge.yaml"

// MaxVerbosity bounds build_verbosity in both directions.
const MaxVerbosity = 3

// Config represents the wheelforge.yaml configuration file.
type Config struct {
	OutputDir      string      `yaml:"output_dir,omitempty"`
	BeforeBuild    string      `yaml:"before_build,omitempty"`
	RepairCommand  string      `yaml:"repair_command,omitempty"`
	BuildVerbosity int         `yaml:"build_verbosity,omitempty"`
	Build          string      `yaml:"build,omitempty"` // selector, informational
	Environment    Environment `yaml:"environment,omitempty"`

	Test  TestConfig  `yaml:"test,omitempty"`
	Tools ToolsConfig `yaml:"tools,omitempty"`
}

// TestConfig holds the test stage settings.
type TestConfig struct {
	Command  string   `yaml:"command,omitempty"`
	Before   string   `yaml:"before,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
	Extras   string   `yaml:"extras,omitempty"`
	Cwd      string   `yaml:"cwd,omitempty"`
}

// ToolsConfig names the host interpreter and installer.
type ToolsConfig struct {
	Python string `yaml:"python,omitempty"`
	Pip    string `yaml:"pip,omitempty"`
}

// Default returns a configuration with default values applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// LoadOrDefault loads path when it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes YAML, rejecting unknown keys, and validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes as io.EOF and means "all defaults".
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Save writes the config to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := xos.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks whether the configuration is usable.
func (c *Config) Validate() error {
	if c.BuildVerbosity < -MaxVerbosity || c.BuildVerbosity > MaxVerbosity {
		return fmt.Errorf("build_verbosity must be between %d and %d, got %d", -MaxVerbosity, MaxVerbosity, c.BuildVerbosity)
	}

	templates := []struct {
		field string
		value string
		names []string
	}{
		{"before_build", c.BeforeBuild, []string{template.Project}},
		{"repair_command", c.RepairCommand, []string{template.Wheel, template.DestDir}},
		{"test.before", c.Test.Before, []string{template.Project}},
		{"test.command", c.Test.Command, []string{template.Project}},
	}
	for _, t := range templates {
		if err := checkTemplate(t.value, t.names); err != nil {
			return fmt.Errorf("%s: %w", t.field, err)
		}
	}

	for _, a := range c.Environment {
		if a.Name == "" || strings.ContainsAny(a.Name, "= ") {
			return fmt.Errorf("environment: invalid variable name %q", a.Name)
		}
	}

	return nil
}

// checkTemplate expands tmpl with dummy values for the allowed names.
func checkTemplate(tmpl string, names []string) error {
	if tmpl == "" {
		return nil
	}
	values := template.Values("python", "pip")
	for _, n := range names {
		values[n] = n
	}
	_, err := template.Prepare(tmpl, values)
	return err
}

// applyDefaults sets default values for missing fields.
func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "wheelhouse"
	}
	if c.Tools.Python == "" {
		c.Tools.Python = pipeline.DefaultPython
	}
	if c.Tools.Pip == "" {
		c.Tools.Pip = pipeline.DefaultPip
	}
	if c.Build == "" {
		c.Build = "*"
	}
	c.Test.Extras = NormalizeExtras(c.Test.Extras)
}

// NormalizeExtras turns "test,docs" into the "[test,docs]" install qualifier.
func NormalizeExtras(extras string) string {
	extras = strings.TrimSpace(extras)
	if extras == "" || strings.HasPrefix(extras, "[") {
		return extras
	}
	return "[" + extras + "]"
}

// Options converts the configuration into pipeline options.
func (c *Config) Options(projectDir string) pipeline.Options {
	return pipeline.Options{
		ProjectDir:     projectDir,
		OutputDir:      c.OutputDir,
		BeforeBuild:    c.BeforeBuild,
		RepairCommand:  c.RepairCommand,
		BuildVerbosity: c.BuildVerbosity,
		BuildSelector:  c.Build,
		Environment:    slices.Clone(c.Environment),
		TestCommand:    c.Test.Command,
		BeforeTest:     c.Test.Before,
		TestRequires:   c.Test.Requires,
		TestExtras:     c.Test.Extras,
		TestCwd:        c.Test.Cwd,
		Python:         c.Tools.Python,
		Pip:            c.Tools.Pip,
	}
}
