// internal/diag/types.go
package diag

import (
	"fmt"
	"time"

	"codemedic/internal/detect"
)

// Severity classifies a diagnostic finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Family identifies one category of external check. The definition
// lives in detect so detectors stay a leaf package; these aliases keep
// call sites on the diag vocabulary.
type Family = detect.Family

const (
	FamilyTypecheck = detect.FamilyTypecheck
	FamilyBuild     = detect.FamilyBuild
	FamilyLint      = detect.FamilyLint
	FamilyStylelint = detect.FamilyStylelint
	FamilyTest      = detect.FamilyTest
)

// Families lists all supported check families in execution order
var Families = detect.Families

// Diagnostic is the normalized unit produced by every tool adapter
type Diagnostic struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Severity Severity `json:"severity"`
}

// Key returns the identity used for deduplication and snapshot comparison
func (d Diagnostic) Key() string {
	return fmt.Sprintf("%s:%d:%s", d.File, d.Line, d.Code)
}

// Result is the outcome of running one check family
type Result struct {
	Family   Family        `json:"family"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped"`
	Errors   []Diagnostic  `json:"errors"`
	Warnings []Diagnostic  `json:"warnings"`
	Raw      string        `json:"raw,omitempty"`
	Duration time.Duration `json:"duration"`
	// Stats is populated for FamilyTest when the runner printed totals
	Stats *TestStats `json:"stats,omitempty"`
}

// TestStats carries test-runner totals when the family is FamilyTest
type TestStats struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Dedupe removes diagnostics sharing the same (file, line, code) key,
// keeping the first occurrence
func Dedupe(diags []Diagnostic) []Diagnostic {
	if len(diags) < 2 {
		return diags
	}
	seen := make(map[string]bool, len(diags))
	out := diags[:0]
	for _, d := range diags {
		key := d.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// Split partitions diagnostics into errors and warnings
func Split(diags []Diagnostic) (errors, warnings []Diagnostic) {
	for _, d := range diags {
		if d.Severity == SeverityError {
			errors = append(errors, d)
		} else {
			warnings = append(warnings, d)
		}
	}
	return errors, warnings
}
