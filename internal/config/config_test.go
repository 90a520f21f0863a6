// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codemedic/internal/diag"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Rollback.Threshold != 0 {
		t.Errorf("Default threshold = %d, want 0", cfg.Rollback.Threshold)
	}
	if cfg.Rollback.Auto {
		t.Error("Auto rollback must default to off")
	}
	if !cfg.Verify.Enabled || cfg.Verify.Policy != "conservative" {
		t.Errorf("Verify defaults wrong: %+v", cfg.Verify)
	}
	if cfg.Checkpoints.Max != 20 {
		t.Errorf("Checkpoint max = %d, want 20", cfg.Checkpoints.Max)
	}
	if cfg.Timeout() != 120*time.Second {
		t.Errorf("Timeout = %s, want 120s", cfg.Timeout())
	}
	if len(cfg.Families()) != len(diag.Families) {
		t.Error("Empty family list should mean all families")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Rollback.HistorySize != 100 {
		t.Errorf("HistorySize = %d, want default 100", cfg.Rollback.HistorySize)
	}
}

func TestLoadOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	content := `rollback:
  threshold: 2
  auto: true
  history_size: 50
verify:
  enabled: true
  policy: critical-only
  critical_codes: [TS2304, TS2322]
diagnostics:
  timeout_seconds: 30
  families: [typecheck, lint]
checkpoints:
  max: 5
  persist: false
tools:
  typecheck:
    command: [deno, check, .]
    parser: tsc
`
	if err := os.WriteFile(filepath.Join(dir, "codemedic.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Rollback.Threshold != 2 || !cfg.Rollback.Auto || cfg.Rollback.HistorySize != 50 {
		t.Errorf("Rollback section wrong: %+v", cfg.Rollback)
	}
	if cfg.Verify.Policy != "critical-only" || len(cfg.Verify.CriticalCodes) != 2 {
		t.Errorf("Verify section wrong: %+v", cfg.Verify)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout())
	}

	families := cfg.Families()
	if len(families) != 2 || families[0] != diag.FamilyTypecheck || families[1] != diag.FamilyLint {
		t.Errorf("Families = %v", families)
	}

	overrides := cfg.ToolOverrides()
	if overrides == nil {
		t.Fatal("Expected tool overrides")
	}
	cmd, ok := overrides.Command(diag.FamilyTypecheck)
	if !ok {
		t.Fatal("typecheck override missing")
	}
	if len(cmd.Argv) != 3 || cmd.Argv[0] != "deno" {
		t.Errorf("Argv = %v", cmd.Argv)
	}
	if cmd.Parser != diag.ParserTSC {
		t.Errorf("Parser = %s", cmd.Parser)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "codemedic.yaml"), []byte("rollback: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestToolOverridesDefaultParser(t *testing.T) {
	cfg := Default()
	cfg.Tools = map[string]ToolConfig{
		"build": {Command: []string{"make"}},
	}

	overrides := cfg.ToolOverrides()
	cmd, ok := overrides.Command(diag.FamilyBuild)
	if !ok {
		t.Fatal("build override missing")
	}
	if cmd.Parser != diag.ParserGeneric {
		t.Errorf("Parser should default to generic, got %s", cmd.Parser)
	}
}

func TestNoToolOverrides(t *testing.T) {
	if Default().ToolOverrides() != nil {
		t.Error("No configured tools should mean nil overrides")
	}
}
