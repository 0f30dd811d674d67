package plannerconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/n9te9/federation-query-planner/plannerconfig"
)

func TestDefault(t *testing.T) {
	got := plannerconfig.Default()
	if got.MaxOperationDepth != 64 {
		t.Errorf("MaxOperationDepth: got %d, want 64", got.MaxOperationDepth)
	}
	if got.MaxSteinerRunsPerPlan != 4096 {
		t.Errorf("MaxSteinerRunsPerPlan: got %d, want 4096", got.MaxSteinerRunsPerPlan)
	}
	if !got.AllowIntrospection {
		t.Errorf("AllowIntrospection: got false, want true")
	}
	if got.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want %q", got.LogLevel, "info")
	}
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
max_operation_depth: 12
allow_introspection: false
log_level: debug
`)

	got, err := plannerconfig.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: unexpected error: %v", err)
	}
	if got.MaxOperationDepth != 12 {
		t.Errorf("MaxOperationDepth: got %d, want 12", got.MaxOperationDepth)
	}
	if got.AllowIntrospection {
		t.Errorf("AllowIntrospection: got true, want false")
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", got.LogLevel, "debug")
	}
	// Fields the file didn't set keep their Default value.
	if got.MaxSteinerRunsPerPlan != 4096 {
		t.Errorf("MaxSteinerRunsPerPlan: got %d, want 4096 (untouched default)", got.MaxSteinerRunsPerPlan)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := plannerconfig.LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("LoadFile: expected an error for a missing file, got nil")
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "max_operation_depth: [this is not an int\n")

	if _, err := plannerconfig.LoadFile(path); err == nil {
		t.Fatal("LoadFile: expected an error for malformed YAML, got nil")
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}
	return path
}
