// internal/verify/verifier.go
package verify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"codemedic/internal/diag"
)

// Policy controls when a failed verification recommends rollback
type Policy string

const (
	// PolicyConservative recommends rollback on any file-scoped error
	PolicyConservative Policy = "conservative"
	// PolicyCriticalOnly recommends rollback only for configured codes
	PolicyCriticalOnly Policy = "critical-only"
)

// Result is the outcome of verifying a single file
type Result struct {
	Path           string            `json:"path"`
	Passed         bool              `json:"passed"`
	Errors         []diag.Diagnostic `json:"errors"`
	Warnings       []diag.Diagnostic `json:"warnings"`
	ShouldRollback bool              `json:"should_rollback"`
	RollbackReason string            `json:"rollback_reason,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// Verifier runs file-scoped diagnostics immediately after a write,
// much cheaper than a whole-project pass
type Verifier struct {
	collector *diag.Collector
	policy    Policy
	critical  map[string]bool
	families  []diag.Family

	mu       sync.Mutex
	verified map[string]*Result
}

// Option configures a Verifier
type Option func(*Verifier)

// WithPolicy sets the rollback recommendation policy
func WithPolicy(p Policy) Option {
	return func(v *Verifier) { v.policy = p }
}

// WithCriticalCodes sets the codes that trigger rollback under
// PolicyCriticalOnly
func WithCriticalCodes(codes ...string) Option {
	return func(v *Verifier) {
		v.critical = make(map[string]bool, len(codes))
		for _, c := range codes {
			v.critical[c] = true
		}
	}
}

// WithFamilies restricts the check families run per file
func WithFamilies(families ...diag.Family) Option {
	return func(v *Verifier) { v.families = families }
}

// New creates a Verifier. The default policy is conservative and the
// default families are typecheck and lint.
func New(collector *diag.Collector, opts ...Option) *Verifier {
	v := &Verifier{
		collector: collector,
		policy:    PolicyConservative,
		families:  []diag.Family{diag.FamilyTypecheck, diag.FamilyLint},
		verified:  make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyFile runs the file-scoped checks and computes a rollback
// recommendation. A tool crash yields passed = false but never a
// rollback recommendation: a tooling glitch is not evidence the edited
// file is wrong.
func (v *Verifier) VerifyFile(ctx context.Context, path string) *Result {
	start := time.Now()

	var errs, warns []diag.Diagnostic
	for _, family := range v.families {
		r := v.collector.Collect(ctx, family, path)
		if r.Skipped {
			continue
		}
		errs = append(errs, r.Errors...)
		warns = append(warns, r.Warnings...)
	}
	errs = diag.Dedupe(errs)
	warns = diag.Dedupe(warns)

	result := &Result{
		Path:     path,
		Passed:   len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
		Duration: time.Since(start),
	}

	// Synthetic tool-failure entries never justify rollback on their
	// own; the policy applies to the genuine findings, so a crash in one
	// family cannot mask real errors from another.
	var genuine []diag.Diagnostic
	for _, e := range errs {
		if e.Code != "tool-crash" && e.Code != "tool-timeout" {
			genuine = append(genuine, e)
		}
	}

	switch {
	case len(genuine) > 0 && v.policy == PolicyConservative:
		result.ShouldRollback = true
		result.RollbackReason = fmt.Sprintf("%d error(s) in %s after edit", len(genuine), path)
	case len(genuine) > 0 && v.policy == PolicyCriticalOnly:
		for _, e := range genuine {
			if v.critical[e.Code] {
				result.ShouldRollback = true
				result.RollbackReason = fmt.Sprintf("critical error %s in %s", e.Code, path)
				break
			}
		}
	}

	v.mu.Lock()
	v.verified[path] = result
	v.mu.Unlock()

	if !result.Passed {
		log.Printf("[Verify] %s failed: %d errors (rollback=%v)", path, len(errs), result.ShouldRollback)
	}
	return result
}

// VerifiedFiles returns a copy of the per-session verification map
func (v *Verifier) VerifiedFiles() map[string]*Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]*Result, len(v.verified))
	for path, r := range v.verified {
		out[path] = r
	}
	return out
}

// Summary reports verified/passed/failed counts for the session
func (v *Verifier) Summary() (verified, passed, failed int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.verified {
		verified++
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}
	return verified, passed, failed
}

// Reset clears the per-session verification map
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verified = make(map[string]*Result)
}
