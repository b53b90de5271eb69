package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExcludedPackages are the foundational schema packages; they define
// the format itself rather than content and are never ingested.
var DefaultExcludedPackages = []string{
	"hl7.fhir.r2",
	"hl7.fhir.r2b",
	"hl7.fhir.r3",
	"hl7.fhir.r4",
	"hl7.fhir.r4b",
	"hl7.fhir.r5",
	"hl7.fhir.r6",
	"hl7.fhir.xver",
}

// RunConfig configures one build run
type RunConfig struct {
	// Packages is the directory holding .tgz packages or unpacked package folders
	Packages string `yaml:"packages"`
	// Output is the store file; any existing file is replaced
	Output string `yaml:"output"`
	// Report, when set, receives the run summary as YAML
	Report string `yaml:"report"`
	// Metrics, when set, receives the run counters in Prometheus text format
	Metrics string `yaml:"metrics_file"`
	// Exclude lists package id prefixes that are skipped entirely
	Exclude []string `yaml:"exclude"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DefaultRunConfig returns a RunConfig with sensible defaults
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Packages: "packages",
		Output:   "artifacts.db",
		Exclude:  append([]string(nil), DefaultExcludedPackages...),
		LogLevel: "info",
	}
}

// Validate checks that the configuration is usable
func (c *RunConfig) Validate() error {
	if c.Packages == "" {
		return fmt.Errorf("packages is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	for _, p := range c.Exclude {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("exclude entries must not be empty")
		}
	}
	return nil
}

// LoadFromFile loads a run configuration from a YAML file.
// Fields absent from the file keep their defaults.
func LoadFromFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
