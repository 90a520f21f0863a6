// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"codemedic/internal/detect"
	"codemedic/internal/diag"
)

// Config is the per-session configuration, loaded from
// codemedic.yaml in the project root when present
type Config struct {
	Rollback    RollbackConfig        `yaml:"rollback"`
	Verify      VerifyConfig          `yaml:"verify"`
	Diagnostics DiagnosticsConfig     `yaml:"diagnostics"`
	Checkpoints CheckpointsConfig     `yaml:"checkpoints"`
	Tools       map[string]ToolConfig `yaml:"tools,omitempty"`
}

// RollbackConfig tunes the rollback controller
type RollbackConfig struct {
	// Threshold is the accepted error-count increase (default 0:
	// errors must not increase)
	Threshold int `yaml:"threshold"`
	// Auto executes the rollback a failed check recommends
	Auto bool `yaml:"auto"`
	// HistorySize bounds the execution history ring
	HistorySize int `yaml:"history_size"`
}

// VerifyConfig tunes the per-file verifier
type VerifyConfig struct {
	Enabled bool `yaml:"enabled"`
	// Policy is "conservative" (any error) or "critical-only"
	Policy        string   `yaml:"policy"`
	CriticalCodes []string `yaml:"critical_codes,omitempty"`
}

// DiagnosticsConfig tunes the collector
type DiagnosticsConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Families restricts which checks run; empty means all
	Families []string `yaml:"families,omitempty"`
}

// CheckpointsConfig tunes the checkpoint manager
type CheckpointsConfig struct {
	Max     int  `yaml:"max"`
	Persist bool `yaml:"persist"`
}

// ToolConfig overrides a detected tool command for one family
type ToolConfig struct {
	Command        []string `yaml:"command"`
	Parser         string   `yaml:"parser,omitempty"`
	Files          bool     `yaml:"files,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Rollback: RollbackConfig{
			Threshold:   0,
			Auto:        false,
			HistorySize: 100,
		},
		Verify: VerifyConfig{
			Enabled: true,
			Policy:  "conservative",
		},
		Diagnostics: DiagnosticsConfig{
			TimeoutSeconds: 120,
		},
		Checkpoints: CheckpointsConfig{
			Max:     20,
			Persist: true,
		},
	}
}

// Load reads codemedic.yaml (or .codemedic.yaml) from the project
// root, falling back to defaults when absent
func Load(projectPath string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"codemedic.yaml", ".codemedic.yaml"} {
		data, err := os.ReadFile(filepath.Join(projectPath, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// Timeout returns the collector timeout as a duration
func (c *Config) Timeout() time.Duration {
	if c.Diagnostics.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Diagnostics.TimeoutSeconds) * time.Second
}

// Families returns the enabled check families
func (c *Config) Families() []diag.Family {
	if len(c.Diagnostics.Families) == 0 {
		return diag.Families
	}
	families := make([]diag.Family, 0, len(c.Diagnostics.Families))
	for _, f := range c.Diagnostics.Families {
		families = append(families, diag.Family(f))
	}
	return families
}

// ToolOverrides builds a detector from the configured tool commands.
// Returns nil when no overrides are configured.
func (c *Config) ToolOverrides() detect.Detector {
	if len(c.Tools) == 0 {
		return nil
	}
	commands := make(map[diag.Family]detect.ToolCommand, len(c.Tools))
	for family, tool := range c.Tools {
		cmd := detect.ToolCommand{
			Argv:          tool.Command,
			Parser:        diag.ParserKind(tool.Parser),
			SupportsFiles: tool.Files,
		}
		if cmd.Parser == "" {
			cmd.Parser = diag.ParserGeneric
		}
		if tool.TimeoutSeconds > 0 {
			cmd.Timeout = time.Duration(tool.TimeoutSeconds) * time.Second
		}
		commands[diag.Family(family)] = cmd
	}
	return &detect.Static{Commands: commands}
}

// DataDir resolves the per-user data directory, creating it on first
// use; it holds the session database and checkpoint pool
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".codemedic")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DatabasePath returns the session database location
func DatabasePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// CheckpointDir returns the checkpoint storage root for a project
func CheckpointDir(projectPath string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	// One subtree per project, keyed by basename plus a stable suffix
	name := filepath.Base(projectPath)
	return filepath.Join(dir, "checkpoints", name), nil
}
