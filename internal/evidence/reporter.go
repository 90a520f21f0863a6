// internal/evidence/reporter.go
package evidence

import (
	"fmt"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"codemedic/internal/diag"
)

// ErrorCounts aggregates diagnostics by family. Tests carry full
// pass/fail/total detail.
type ErrorCounts struct {
	TypeErrors  int `json:"type_errors"`
	BuildErrors int `json:"build_errors"`
	LintErrors  int `json:"lint_errors"`
	StyleErrors int `json:"style_errors"`
	TestsFailed int `json:"tests_failed"`
	TestsPassed int `json:"tests_passed"`
	TestsTotal  int `json:"tests_total"`
}

// Total sums everything that counts against the project
func (c ErrorCounts) Total() int {
	return c.TypeErrors + c.BuildErrors + c.LintErrors + c.StyleErrors + c.TestsFailed
}

// CountsFromResults folds collector results into ErrorCounts
func CountsFromResults(results []*diag.Result) ErrorCounts {
	var counts ErrorCounts
	for _, r := range results {
		if r.Skipped {
			continue
		}
		switch r.Family {
		case diag.FamilyTypecheck:
			counts.TypeErrors = len(r.Errors)
		case diag.FamilyBuild:
			counts.BuildErrors = len(r.Errors)
		case diag.FamilyLint:
			counts.LintErrors = len(r.Errors)
		case diag.FamilyStylelint:
			counts.StyleErrors = len(r.Errors)
		case diag.FamilyTest:
			counts.TestsFailed = len(r.Errors)
			if r.Stats != nil {
				counts.TestsFailed = r.Stats.Failed
				counts.TestsPassed = r.Stats.Passed
				counts.TestsTotal = r.Stats.Total
			}
		}
	}
	return counts
}

// ClaimValidation is the verdict on a completion claim
type ClaimValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Verdict is the grounded summary of a before/after comparison
type Verdict string

const (
	VerdictAllFixed     Verdict = "all fixed"
	VerdictPartial      Verdict = "partial progress"
	VerdictNewErrors    Verdict = "new errors introduced"
	VerdictNoChange     Verdict = "no change"
	VerdictAlreadyClean Verdict = "already clean"
	VerdictUnverified   Verdict = "cannot verify"
)

// Reporter gates "errors fixed" narratives behind recorded before and
// after counts. It never trusts the generator's own claims.
type Reporter struct {
	mu         sync.Mutex
	pre        *ErrorCounts
	post       *ErrorCounts
	capturedAt time.Time
}

// NewReporter creates an empty Reporter
func NewReporter() *Reporter {
	return &Reporter{}
}

// CapturePreChangeState records diagnostics counts before changes
func (r *Reporter) CapturePreChangeState(counts ErrorCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := counts
	r.pre = &c
	r.post = nil
}

// CapturePostChangeState records diagnostics counts after changes
func (r *Reporter) CapturePostChangeState(counts ErrorCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := counts
	r.post = &c
	r.capturedAt = time.Now()
}

// ValidateCompletionClaim checks a "the code is fixed" claim against
// recorded evidence. The claim text itself is never consulted for
// truth, only reported back in reasons.
func (r *Reporter) ValidateCompletionClaim(claim string) ClaimValidation {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.pre == nil && r.post == nil:
		return ClaimValidation{Valid: false, Reason: "verification was never run; cannot validate claim"}
	case r.pre == nil:
		return ClaimValidation{Valid: false, Reason: "no pre-change state captured; cannot validate claim"}
	case r.post == nil:
		return ClaimValidation{Valid: false, Reason: "no post-change state captured; cannot validate claim"}
	}

	before, after := r.pre.Total(), r.post.Total()
	if before > 0 && after >= before {
		return ClaimValidation{
			Valid:  false,
			Reason: fmt.Sprintf("claim not supported: %d errors before, %d after", before, after),
		}
	}
	return ClaimValidation{
		Valid:  true,
		Reason: fmt.Sprintf("supported by evidence: %d errors before, %d after", before, after),
	}
}

// Verdict derives the grounded verdict from the captured counts
func (r *Reporter) Verdict() Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pre == nil || r.post == nil {
		return VerdictUnverified
	}
	before, after := r.pre.Total(), r.post.Total()
	switch {
	case before == 0 && after == 0:
		return VerdictAlreadyClean
	case after == 0:
		return VerdictAllFixed
	case after > before:
		return VerdictNewErrors
	case after < before:
		return VerdictPartial
	default:
		return VerdictNoChange
	}
}

// GenerateReport renders the before/after table and verdict, derived
// strictly from the captured counts
func (r *Reporter) GenerateReport() string {
	verdict := r.Verdict()

	r.mu.Lock()
	pre, post := r.pre, r.post
	r.mu.Unlock()

	if pre == nil || post == nil {
		return fmt.Sprintf("Verdict: %s\nNo before/after evidence was captured; success cannot be asserted.", verdict)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Check", "Before", "After", "Delta"})
	t.AppendRows([]table.Row{
		{"Type errors", pre.TypeErrors, post.TypeErrors, post.TypeErrors - pre.TypeErrors},
		{"Build errors", pre.BuildErrors, post.BuildErrors, post.BuildErrors - pre.BuildErrors},
		{"Lint errors", pre.LintErrors, post.LintErrors, post.LintErrors - pre.LintErrors},
		{"Style errors", pre.StyleErrors, post.StyleErrors, post.StyleErrors - pre.StyleErrors},
		{"Failing tests", pre.TestsFailed, post.TestsFailed, post.TestsFailed - pre.TestsFailed},
	})
	t.AppendFooter(table.Row{"Total", pre.Total(), post.Total(), post.Total() - pre.Total()})

	report := t.Render()
	if post.TestsTotal > 0 {
		report += fmt.Sprintf("\nTests: %d passed, %d failed, %d total", post.TestsPassed, post.TestsFailed, post.TestsTotal)
	}
	return fmt.Sprintf("%s\nVerdict: %s", report, verdict)
}

// Reset clears all captured evidence
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre = nil
	r.post = nil
}
