// internal/evidence/reporter_test.go
package evidence

import (
	"strings"
	"testing"

	"codemedic/internal/diag"
)

func TestValidateClaimWithoutEvidence(t *testing.T) {
	r := NewReporter()

	v := r.ValidateCompletionClaim("I fixed all the errors")
	if v.Valid {
		t.Error("A claim with no captured state must be invalid")
	}
	if !strings.Contains(v.Reason, "never run") {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestValidateClaimWithoutPostState(t *testing.T) {
	r := NewReporter()
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 3})

	v := r.ValidateCompletionClaim("all fixed")
	if v.Valid {
		t.Error("A claim without post-change evidence must be invalid")
	}
	if !strings.Contains(v.Reason, "post-change") {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestValidateClaimRejectedWhenErrorsRemain(t *testing.T) {
	r := NewReporter()
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 3})
	r.CapturePostChangeState(ErrorCounts{TypeErrors: 3})

	if v := r.ValidateCompletionClaim("fixed"); v.Valid {
		t.Error("Unchanged error count cannot support a fix claim")
	}

	r.CapturePreChangeState(ErrorCounts{TypeErrors: 3})
	r.CapturePostChangeState(ErrorCounts{TypeErrors: 5})
	if v := r.ValidateCompletionClaim("fixed"); v.Valid {
		t.Error("More errors after than before cannot support a fix claim")
	}
}

func TestValidateClaimSupportedByImprovement(t *testing.T) {
	r := NewReporter()
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 3, LintErrors: 1})
	r.CapturePostChangeState(ErrorCounts{TypeErrors: 0, LintErrors: 0})

	v := r.ValidateCompletionClaim("all fixed")
	if !v.Valid {
		t.Errorf("Claim should be supported: %s", v.Reason)
	}
}

func TestCapturePreClearsStalePost(t *testing.T) {
	r := NewReporter()
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 1})
	r.CapturePostChangeState(ErrorCounts{})

	// A new pre-capture starts a new measurement window; the old post
	// snapshot must not be reusable as evidence
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 2})
	if v := r.ValidateCompletionClaim("fixed"); v.Valid {
		t.Error("Stale post-change state must not validate a new claim")
	}
}

func TestVerdicts(t *testing.T) {
	tests := []struct {
		name   string
		pre    ErrorCounts
		post   ErrorCounts
		expect Verdict
	}{
		{"all fixed", ErrorCounts{TypeErrors: 4}, ErrorCounts{}, VerdictAllFixed},
		{"partial", ErrorCounts{TypeErrors: 4}, ErrorCounts{TypeErrors: 2}, VerdictPartial},
		{"new errors", ErrorCounts{TypeErrors: 1}, ErrorCounts{TypeErrors: 3}, VerdictNewErrors},
		{"no change", ErrorCounts{TypeErrors: 2}, ErrorCounts{TypeErrors: 2}, VerdictNoChange},
		{"already clean", ErrorCounts{}, ErrorCounts{}, VerdictAlreadyClean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter()
			r.CapturePreChangeState(tt.pre)
			r.CapturePostChangeState(tt.post)
			if got := r.Verdict(); got != tt.expect {
				t.Errorf("Verdict = %q, want %q", got, tt.expect)
			}
		})
	}

	if got := NewReporter().Verdict(); got != VerdictUnverified {
		t.Errorf("Empty reporter verdict = %q, want %q", got, VerdictUnverified)
	}
}

func TestCountsFromResults(t *testing.T) {
	mkErrs := func(n int) []diag.Diagnostic {
		errs := make([]diag.Diagnostic, n)
		for i := range errs {
			errs[i] = diag.Diagnostic{Code: "X", Severity: diag.SeverityError}
		}
		return errs
	}

	results := []*diag.Result{
		{Family: diag.FamilyTypecheck, Errors: mkErrs(2)},
		{Family: diag.FamilyBuild, Skipped: true, Errors: mkErrs(9)},
		{Family: diag.FamilyLint, Errors: mkErrs(1)},
		{Family: diag.FamilyTest, Errors: mkErrs(1), Stats: &diag.TestStats{Passed: 5, Failed: 2, Total: 7}},
	}

	counts := CountsFromResults(results)
	if counts.TypeErrors != 2 || counts.LintErrors != 1 {
		t.Errorf("Counts wrong: %+v", counts)
	}
	if counts.BuildErrors != 0 {
		t.Error("Skipped families must not contribute counts")
	}
	// Runner stats override the parsed failure-line count
	if counts.TestsFailed != 2 || counts.TestsPassed != 5 || counts.TestsTotal != 7 {
		t.Errorf("Test stats wrong: %+v", counts)
	}
	if counts.Total() != 5 {
		t.Errorf("Total = %d, want 5", counts.Total())
	}
}

func TestGenerateReport(t *testing.T) {
	r := NewReporter()

	if report := r.GenerateReport(); !strings.Contains(report, string(VerdictUnverified)) {
		t.Errorf("Report without evidence should refuse to assert success: %q", report)
	}

	r.CapturePreChangeState(ErrorCounts{TypeErrors: 3, LintErrors: 2})
	r.CapturePostChangeState(ErrorCounts{TypeErrors: 0, LintErrors: 0, TestsPassed: 10, TestsTotal: 10})

	// Header cells come back upper-cased by the table renderer
	report := r.GenerateReport()
	for _, want := range []string{"BEFORE", "AFTER", "DELTA", "Type errors", string(VerdictAllFixed), "10 total"} {
		if !strings.Contains(report, want) {
			t.Errorf("Report missing %q:\n%s", want, report)
		}
	}
}

func TestReset(t *testing.T) {
	r := NewReporter()
	r.CapturePreChangeState(ErrorCounts{TypeErrors: 1})
	r.CapturePostChangeState(ErrorCounts{})
	r.Reset()

	if v := r.ValidateCompletionClaim("fixed"); v.Valid {
		t.Error("Reset must clear all evidence")
	}
}
