// Package plannerconfig loads the tunables a planner deployment carries
// outside the schema itself: solver safety limits, logging verbosity, and
// introspection handling.
//
// Grounded on the teacher's server.loadGatewaySetting (server/gateway.go),
// which reads a YAML settings file into a typed struct with
// goccy/go-yaml.Unmarshal; this package keeps that exact read-a-file/
// unmarshal-into-struct shape, reduced to the options a planning library
// (rather than a running gateway process) needs.
package plannerconfig

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Config holds planner-wide tunables loaded from YAML.
type Config struct {
	// MaxOperationDepth bounds how deeply nested a single operation's
	// selection sets may be before Build refuses to plan it, to keep a
	// pathological query from producing an unbounded operation graph.
	MaxOperationDepth int `yaml:"max_operation_depth"`

	// MaxSteinerRunsPerPlan bounds how many RunOnce rounds the solver may
	// take per operation; exceeding it surfaces as a planning error rather
	// than spinning indefinitely on a malformed graph.
	MaxSteinerRunsPerPlan int `yaml:"max_steiner_runs_per_plan"`

	// AllowIntrospection controls whether __schema/__type root fields are
	// accepted by the operation parser.
	AllowIntrospection bool `yaml:"allow_introspection"`

	// LogLevel is loaded and carried in the config; nothing in this module
	// reads it.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration a planner uses when none is loaded
// explicitly.
func Default() Config {
	return Config{
		MaxOperationDepth:     64,
		MaxSteinerRunsPerPlan: 4096,
		AllowIntrospection:    true,
		LogLevel:              "info",
	}
}

// LoadFile reads and unmarshals a YAML config file, following the
// teacher's loadGatewaySetting (open, read, unmarshal, wrap each failure
// with its own message).
func LoadFile(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open planner config file: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("failed to read planner config file: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal planner config: %w", err)
	}

	return cfg, nil
}
