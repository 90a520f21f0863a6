// internal/diag/collector.go
package diag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"codemedic/internal/detect"
	"codemedic/internal/events"
	"codemedic/internal/host"
)

// DefaultTimeout bounds a single diagnostics subprocess
const DefaultTimeout = 120 * time.Second

// Collector runs the configured check families and normalizes their
// output into Diagnostic lists. Families run sequentially: they compete
// for the same subprocess host, so no two run concurrently.
type Collector struct {
	host     host.Host
	detector detect.Detector
	hub      *events.Hub

	timeout  time.Duration
	families []Family
}

// Option configures a Collector
type Option func(*Collector)

// WithTimeout overrides the default per-family timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

// WithFamilies restricts the family set run by CollectAll
func WithFamilies(families ...Family) Option {
	return func(c *Collector) { c.families = families }
}

// WithHub attaches an event hub for phase and terminal events
func WithHub(hub *events.Hub) Option {
	return func(c *Collector) { c.hub = hub }
}

// NewCollector creates a Collector over the given host and detector
func NewCollector(h host.Host, d detect.Detector, opts ...Option) *Collector {
	c := &Collector{
		host:     h,
		detector: d,
		timeout:  DefaultTimeout,
		families: Families,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs one check family, optionally scoped to target files.
// A family whose tool is not configured is skipped, never failed.
func (c *Collector) Collect(ctx context.Context, family Family, files ...string) *Result {
	start := time.Now()

	cmd, ok := c.detector.Command(family)
	if !ok {
		result := &Result{Family: family, Success: true, Skipped: true}
		c.emitPhase(result)
		return result
	}

	var result *Result
	pkgs := c.detector.Packages()
	if len(pkgs) > 0 && len(files) == 0 && cmd.Dir == "" {
		result = c.collectPerPackage(ctx, family, cmd, pkgs)
	} else {
		result = c.runOne(ctx, family, cmd, files, cmd.Dir)
	}

	result.Duration = time.Since(start)
	c.emitPhase(result)
	return result
}

// CollectAll runs every enabled family in order and returns the results
func (c *Collector) CollectAll(ctx context.Context, files ...string) []*Result {
	results := make([]*Result, 0, len(c.families))
	for _, family := range c.families {
		results = append(results, c.Collect(ctx, family, files...))
	}
	return results
}

// CountErrors sums error diagnostics across results, ignoring skips
func CountErrors(results []*Result) int {
	total := 0
	for _, r := range results {
		if r.Skipped {
			continue
		}
		total += len(r.Errors)
	}
	return total
}

// AllDiagnostics flattens error diagnostics across results
func AllDiagnostics(results []*Result) []Diagnostic {
	var all []Diagnostic
	for _, r := range results {
		if r.Skipped {
			continue
		}
		all = append(all, r.Errors...)
	}
	return Dedupe(all)
}

// collectPerPackage runs the family once per monorepo package and
// aggregates, prefixing file paths with the package directory
func (c *Collector) collectPerPackage(ctx context.Context, family Family, cmd detect.ToolCommand, pkgs []string) *Result {
	agg := &Result{Family: family, Success: true}
	for _, pkg := range pkgs {
		r := c.runOne(ctx, family, cmd, nil, pkg)
		for i := range r.Errors {
			r.Errors[i].File = joinPkg(pkg, r.Errors[i].File)
		}
		for i := range r.Warnings {
			r.Warnings[i].File = joinPkg(pkg, r.Warnings[i].File)
		}
		agg.Errors = append(agg.Errors, r.Errors...)
		agg.Warnings = append(agg.Warnings, r.Warnings...)
		agg.Raw += r.Raw
		if !r.Success {
			agg.Success = false
		}
	}
	agg.Errors = Dedupe(agg.Errors)
	agg.Warnings = Dedupe(agg.Warnings)
	return agg
}

func joinPkg(pkg, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(pkg, file)
}

// runOne spawns the tool once and parses its output
func (c *Collector) runOne(ctx context.Context, family Family, cmd detect.ToolCommand, files []string, dir string) *Result {
	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := detect.ScopedArgv(cmd, files)
	log.Printf("[Diag] Running %s: %v", family, argv)

	var listener func([]byte)
	if c.hub != nil {
		listener = c.hub.EmitTerminal
	}

	exitCode, output, err := c.host.Spawn(runCtx, argv, dir, listener)
	raw := string(output)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Timeout is a hard failure of this phase, reported as a
			// single synthetic error rather than silently succeeding
			return &Result{
				Family:  family,
				Success: false,
				Errors: []Diagnostic{{
					Code:     "tool-timeout",
					Message:  fmt.Sprintf("%s exceeded %s timeout", family, timeout),
					Severity: SeverityError,
				}},
				Raw: raw,
			}
		}
		// Spawn failure: the tool itself could not run
		return &Result{
			Family:  family,
			Success: false,
			Errors: []Diagnostic{{
				Code:     "tool-crash",
				Message:  fmt.Sprintf("%s tool failed to run: %v", family, err),
				Severity: SeverityError,
			}},
			Raw: raw,
		}
	}

	diags := Parse(cmd.Parser, raw)
	errDiags, warnDiags := Split(diags)

	result := &Result{
		Family:   family,
		Success:  len(errDiags) == 0,
		Errors:   errDiags,
		Warnings: warnDiags,
		Raw:      raw,
	}

	if family == FamilyTest {
		if stats, ok := ParseTestStats(raw); ok {
			result.Stats = &stats
		}
		if exitCode != 0 && len(errDiags) == 0 {
			// Runner failed without a parseable failure line
			result.Success = false
			result.Errors = []Diagnostic{{
				Code:     "test-fail",
				Message:  fmt.Sprintf("test runner exited with code %d", exitCode),
				Severity: SeverityError,
			}}
		}
	}

	// A nonzero exit with no parsed diagnostics is a tool crash, not a
	// clean pass
	if exitCode != 0 && len(result.Errors) == 0 && family != FamilyTest {
		result.Success = false
		result.Errors = []Diagnostic{{
			Code:     "tool-crash",
			Message:  fmt.Sprintf("%s exited with code %d and no parseable diagnostics", family, exitCode),
			Severity: SeverityError,
		}}
	}

	return result
}

func (c *Collector) emitPhase(r *Result) {
	if c.hub == nil {
		return
	}
	c.hub.EmitPhaseComplete(events.PhaseCompleteEvent{
		Family:       string(r.Family),
		Success:      r.Success,
		Skipped:      r.Skipped,
		ErrorCount:   len(r.Errors),
		WarningCount: len(r.Warnings),
		DurationMs:   r.Duration.Milliseconds(),
	})
}
