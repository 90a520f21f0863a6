// internal/snapshot/compare.go
package snapshot

import (
	"fmt"

	"codemedic/internal/diag"
)

// Comparison is the structured delta between two snapshots
type Comparison struct {
	Delta           int               `json:"delta"`
	ErrorsIncreased bool              `json:"errors_increased"`
	ErrorsDecreased bool              `json:"errors_decreased"`
	NewErrors       []diag.Diagnostic `json:"new_errors"`
	FixedErrors     []diag.Diagnostic `json:"fixed_errors"`
	Summary         string            `json:"summary"`
}

// Compare diffs two snapshots. Identity is (file, line, code): an error
// that moves lines counts as fixed + new, an accepted simplification.
func Compare(before, after *Snapshot) *Comparison {
	beforeKeys := make(map[string]bool, len(before.Errors))
	for _, e := range before.Errors {
		beforeKeys[e.Key()] = true
	}
	afterKeys := make(map[string]bool, len(after.Errors))
	for _, e := range after.Errors {
		afterKeys[e.Key()] = true
	}

	var newErrors, fixedErrors []diag.Diagnostic
	for _, e := range after.Errors {
		if !beforeKeys[e.Key()] {
			newErrors = append(newErrors, e)
		}
	}
	for _, e := range before.Errors {
		if !afterKeys[e.Key()] {
			fixedErrors = append(fixedErrors, e)
		}
	}

	delta := after.ErrorCount - before.ErrorCount
	cmp := &Comparison{
		Delta:           delta,
		ErrorsIncreased: delta > 0,
		ErrorsDecreased: delta < 0,
		NewErrors:       newErrors,
		FixedErrors:     fixedErrors,
	}
	cmp.Summary = summarize(before, after, cmp)
	return cmp
}

// Acceptable applies the caller decision rule: a change is acceptable
// when the error count did not grow past the configured threshold
func (c *Comparison) Acceptable(threshold int) bool {
	return c.Delta <= threshold
}

func summarize(before, after *Snapshot, cmp *Comparison) string {
	switch {
	case before.ErrorCount == 0 && after.ErrorCount == 0:
		return "no errors before or after"
	case cmp.Delta == 0 && len(cmp.NewErrors) == 0:
		return fmt.Sprintf("unchanged: %d errors", after.ErrorCount)
	case cmp.Delta == 0:
		return fmt.Sprintf("%d errors (shifted: %d fixed, %d new)", after.ErrorCount, len(cmp.FixedErrors), len(cmp.NewErrors))
	case cmp.Delta < 0:
		return fmt.Sprintf("improved: %d -> %d errors (%d fixed, %d new)", before.ErrorCount, after.ErrorCount, len(cmp.FixedErrors), len(cmp.NewErrors))
	default:
		return fmt.Sprintf("regressed: %d -> %d errors (%d new, %d fixed)", before.ErrorCount, after.ErrorCount, len(cmp.NewErrors), len(cmp.FixedErrors))
	}
}
