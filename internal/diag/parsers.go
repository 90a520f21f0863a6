// internal/diag/parsers.go
package diag

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"codemedic/internal/detect"
)

// ParserKind selects the output adapter for a tool command, aliased
// from detect alongside Family
type ParserKind = detect.ParserKind

const (
	ParserTSC       = detect.ParserTSC
	ParserESLint    = detect.ParserESLint
	ParserStylelint = detect.ParserStylelint
	ParserGeneric   = detect.ParserGeneric
	ParserJest      = detect.ParserJest
)

// Parse dispatches raw tool output to the adapter for the given kind
func Parse(kind ParserKind, raw string) []Diagnostic {
	switch kind {
	case ParserTSC:
		return parseTSC(raw)
	case ParserESLint:
		return parseESLintJSON(raw)
	case ParserStylelint:
		return parseStylelintJSON(raw)
	case ParserJest:
		return parseJest(raw)
	default:
		return parseGeneric(raw)
	}
}

// tscLine matches "src/a.ts(10,5): error TS2304: Cannot find name 'x'."
// and the --pretty variant "src/a.ts:10:5 - error TS2304: ...".
var (
	tscParenLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.+)$`)
	tscColonLine = regexp.MustCompile(`^(.+?):(\d+):(\d+) - (error|warning) (TS\d+): (.+)$`)
)

func parseTSC(raw string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		m := tscParenLine.FindStringSubmatch(line)
		if m == nil {
			m = tscColonLine.FindStringSubmatch(strings.TrimSpace(line))
		}
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		diags = append(diags, Diagnostic{
			File:     m[1],
			Line:     lineNo,
			Column:   colNo,
			Severity: Severity(m[4]),
			Code:     m[5],
			Message:  m[6],
		})
	}
	return Dedupe(diags)
}

// eslintFileResult mirrors one element of eslint --format=json output
type eslintFileResult struct {
	FilePath string `json:"filePath"`
	Messages []struct {
		RuleID   string `json:"ruleId"`
		Severity int    `json:"severity"` // 1 = warning, 2 = error
		Message  string `json:"message"`
		Line     int    `json:"line"`
		Column   int    `json:"column"`
		Fatal    bool   `json:"fatal"`
	} `json:"messages"`
}

func parseESLintJSON(raw string) []Diagnostic {
	// eslint may prepend npm/yarn noise before the JSON array
	start := strings.Index(raw, "[")
	if start < 0 {
		return nil
	}
	var results []eslintFileResult
	if err := json.Unmarshal([]byte(raw[start:]), &results); err != nil {
		return nil
	}

	var diags []Diagnostic
	for _, file := range results {
		for _, msg := range file.Messages {
			sev := SeverityWarning
			if msg.Severity == 2 || msg.Fatal {
				sev = SeverityError
			}
			code := msg.RuleID
			if code == "" {
				code = "eslint"
			}
			diags = append(diags, Diagnostic{
				File:     file.FilePath,
				Line:     msg.Line,
				Column:   msg.Column,
				Code:     code,
				Message:  msg.Message,
				Severity: sev,
			})
		}
	}
	return Dedupe(diags)
}

// stylelintFileResult mirrors one element of stylelint --formatter=json output
type stylelintFileResult struct {
	Source   string `json:"source"`
	Warnings []struct {
		Line     int    `json:"line"`
		Column   int    `json:"column"`
		Rule     string `json:"rule"`
		Severity string `json:"severity"`
		Text     string `json:"text"`
	} `json:"warnings"`
}

func parseStylelintJSON(raw string) []Diagnostic {
	start := strings.Index(raw, "[")
	if start < 0 {
		return nil
	}
	var results []stylelintFileResult
	if err := json.Unmarshal([]byte(raw[start:]), &results); err != nil {
		return nil
	}

	var diags []Diagnostic
	for _, file := range results {
		for _, w := range file.Warnings {
			sev := SeverityError
			if w.Severity == "warning" {
				sev = SeverityWarning
			}
			diags = append(diags, Diagnostic{
				File:     file.Source,
				Line:     w.Line,
				Column:   w.Column,
				Code:     w.Rule,
				Message:  w.Text,
				Severity: sev,
			})
		}
	}
	return Dedupe(diags)
}

// genericLine matches gcc-style "file:line:col: error: message" output,
// the common denominator for bundlers and compilers without JSON output
var genericLine = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(error|warning|ERROR|WARNING)[:\s]+(.+)$`)

// webpackLine matches "ERROR in ./src/a.js 10:5" headers
var webpackLine = regexp.MustCompile(`^(ERROR|WARNING) in (.+?)(?:\s+(\d+):(\d+))?$`)

func parseGeneric(raw string) []Diagnostic {
	var diags []Diagnostic
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if m := genericLine.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			colNo, _ := strconv.Atoi(m[3])
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     lineNo,
				Column:   colNo,
				Severity: Severity(strings.ToLower(m[4])),
				Code:     "build",
				Message:  m[5],
			})
			continue
		}
		if m := webpackLine.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[3])
			colNo, _ := strconv.Atoi(m[4])
			msg := ""
			if i+1 < len(lines) {
				msg = strings.TrimSpace(lines[i+1])
			}
			diags = append(diags, Diagnostic{
				File:     m[2],
				Line:     lineNo,
				Column:   colNo,
				Severity: Severity(strings.ToLower(m[1])),
				Code:     "build",
				Message:  msg,
			})
		}
	}
	return Dedupe(diags)
}

var (
	jestFailLine    = regexp.MustCompile(`(?m)^\s*(?:FAIL|✗|×)\s+(\S+)`)
	jestSummaryLine = regexp.MustCompile(`Tests:\s+(?:(\d+) failed[,\s]+)?(?:(\d+) skipped[,\s]+)?(?:(\d+) passed[,\s]+)?(\d+) total`)
	jestAtLine      = regexp.MustCompile(`at .+ \((.+?):(\d+):(\d+)\)`)
)

// parseJest recovers failing suites and totals from jest/vitest text output
func parseJest(raw string) []Diagnostic {
	var diags []Diagnostic
	for _, m := range jestFailLine.FindAllStringSubmatch(raw, -1) {
		diags = append(diags, Diagnostic{
			File:     m[1],
			Line:     0,
			Code:     "test-fail",
			Message:  fmt.Sprintf("test suite failed: %s", m[1]),
			Severity: SeverityError,
		})
	}
	// Attach first stack location when the runner prints one
	if loc := jestAtLine.FindStringSubmatch(raw); loc != nil && len(diags) > 0 {
		lineNo, _ := strconv.Atoi(loc[2])
		colNo, _ := strconv.Atoi(loc[3])
		diags[0].Line = lineNo
		diags[0].Column = colNo
	}
	return Dedupe(diags)
}

// ParseTestStats extracts pass/fail/total counts from test-runner output.
// Returns ok = false when no summary line is present.
func ParseTestStats(raw string) (TestStats, bool) {
	m := jestSummaryLine.FindStringSubmatch(raw)
	if m == nil {
		return TestStats{}, false
	}
	failed, _ := strconv.Atoi(m[1])
	passed, _ := strconv.Atoi(m[3])
	total, _ := strconv.Atoi(m[4])
	return TestStats{Passed: passed, Failed: failed, Total: total}, true
}
