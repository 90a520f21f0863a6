// internal/detect/detect.go
package detect

import (
	"time"
)

// ToolCommand is the concrete invocation for one check family,
// supplied by a detector and consumed by the diagnostics collector
type ToolCommand struct {
	// Argv is the full command line, program first
	Argv []string
	// Dir is the working directory relative to the project root ("" = root)
	Dir string
	// Parser selects the output adapter
	Parser ParserKind
	// SupportsFiles indicates target file paths may be appended to Argv
	// for a scoped run
	SupportsFiles bool
	// Timeout bounds the subprocess; zero means the collector default
	Timeout time.Duration
}

// Detector supplies per-project tool commands. A family without a
// configured tool is reported as absent and the collector skips it.
type Detector interface {
	// Command returns the invocation for a family, or ok = false when
	// the project has no tool configured for it
	Command(family Family) (ToolCommand, bool)
	// Packages returns monorepo package directories relative to the
	// project root; empty means a single-package project
	Packages() []string
}

// Static is a fixed command table, used for config overrides and tests
type Static struct {
	Commands map[Family]ToolCommand
	Pkgs     []string
}

// Command returns the configured invocation for a family
func (s *Static) Command(family Family) (ToolCommand, bool) {
	cmd, ok := s.Commands[family]
	return cmd, ok
}

// Packages returns the configured monorepo package dirs
func (s *Static) Packages() []string {
	return s.Pkgs
}

// Layered tries detectors in order, first hit wins. Packages come from
// the first detector that reports any.
type Layered struct {
	Detectors []Detector
}

// Command returns the first configured invocation for a family
func (l *Layered) Command(family Family) (ToolCommand, bool) {
	for _, d := range l.Detectors {
		if cmd, ok := d.Command(family); ok {
			return cmd, true
		}
	}
	return ToolCommand{}, false
}

// Packages returns the first non-empty package list
func (l *Layered) Packages() []string {
	for _, d := range l.Detectors {
		if pkgs := d.Packages(); len(pkgs) > 0 {
			return pkgs
		}
	}
	return nil
}
