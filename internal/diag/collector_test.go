// internal/diag/collector_test.go
package diag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codemedic/internal/detect"
	"codemedic/internal/process"
)

// fakeHost scripts Spawn outcomes per leading argv token
type fakeHost struct {
	exitCode int
	output   string
	err      error
	calls    [][]string
	dirs     []string
}

func (f *fakeHost) ReadFile(path string) (string, error)        { return "", fmt.Errorf("not implemented") }
func (f *fakeHost) WriteFile(path string, content string) error { return nil }
func (f *fakeHost) MkdirAll(path string) error                  { return nil }
func (f *fakeHost) Remove(path string) error                    { return nil }
func (f *fakeHost) Exists(path string) bool                     { return false }

func (f *fakeHost) Spawn(ctx context.Context, argv []string, dir string, listener process.OutputListener) (int, []byte, error) {
	f.calls = append(f.calls, argv)
	f.dirs = append(f.dirs, dir)
	return f.exitCode, []byte(f.output), f.err
}

func staticDetector(family Family, cmd detect.ToolCommand, pkgs ...string) detect.Detector {
	return &detect.Static{
		Commands: map[Family]detect.ToolCommand{family: cmd},
		Pkgs:     pkgs,
	}
}

func TestCollectSkipsUnconfiguredFamily(t *testing.T) {
	h := &fakeHost{}
	c := NewCollector(h, &detect.Static{})

	r := c.Collect(context.Background(), FamilyTypecheck)
	if !r.Skipped {
		t.Fatal("Expected skip for unconfigured family")
	}
	if !r.Success {
		t.Error("A skipped family must not count as failed")
	}
	if len(h.calls) != 0 {
		t.Errorf("No subprocess should run for a skipped family, got %d calls", len(h.calls))
	}
}

func TestCollectParsesToolOutput(t *testing.T) {
	h := &fakeHost{
		exitCode: 2,
		output:   "src/a.ts(1,1): error TS1005: ';' expected.\n",
	}
	d := staticDetector(FamilyTypecheck, detect.ToolCommand{
		Argv:   []string{"tsc", "--noEmit"},
		Parser: ParserTSC,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyTypecheck)
	if r.Skipped || r.Success {
		t.Fatalf("Expected a failed result, got skipped=%v success=%v", r.Skipped, r.Success)
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != "TS1005" {
		t.Errorf("Unexpected errors: %+v", r.Errors)
	}
}

func TestCollectTimeoutYieldsSyntheticError(t *testing.T) {
	h := &fakeHost{err: context.DeadlineExceeded}
	d := staticDetector(FamilyBuild, detect.ToolCommand{
		Argv:    []string{"npm", "run", "build"},
		Parser:  ParserGeneric,
		Timeout: 50 * time.Millisecond,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyBuild)
	if r.Success {
		t.Fatal("A timed-out phase must fail")
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != "tool-timeout" {
		t.Errorf("Expected a single tool-timeout error, got %+v", r.Errors)
	}
}

func TestCollectSpawnFailureYieldsToolCrash(t *testing.T) {
	h := &fakeHost{err: fmt.Errorf("exec: no such file")}
	d := staticDetector(FamilyLint, detect.ToolCommand{
		Argv:   []string{"eslint"},
		Parser: ParserESLint,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyLint)
	if r.Success {
		t.Fatal("A crashed tool must fail the phase")
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != "tool-crash" {
		t.Errorf("Expected tool-crash, got %+v", r.Errors)
	}
}

func TestCollectNonzeroExitWithoutDiagnostics(t *testing.T) {
	h := &fakeHost{exitCode: 1, output: "segfault (core dumped)\n"}
	d := staticDetector(FamilyTypecheck, detect.ToolCommand{
		Argv:   []string{"tsc"},
		Parser: ParserTSC,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyTypecheck)
	if r.Success {
		t.Fatal("Nonzero exit without diagnostics must not pass")
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != "tool-crash" {
		t.Errorf("Expected tool-crash, got %+v", r.Errors)
	}
}

func TestCollectTestFamilyNonzeroExit(t *testing.T) {
	// A test runner failing without a parseable FAIL line still records a
	// test failure, not a crash
	h := &fakeHost{exitCode: 1, output: "1 test failed in a way we cannot parse\n"}
	d := staticDetector(FamilyTest, detect.ToolCommand{
		Argv:   []string{"npm", "test"},
		Parser: ParserJest,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyTest)
	if r.Success {
		t.Fatal("Expected failure")
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != "test-fail" {
		t.Errorf("Expected test-fail, got %+v", r.Errors)
	}
}

func TestCollectTestFamilyStats(t *testing.T) {
	h := &fakeHost{exitCode: 0, output: "Tests:       3 passed, 3 total\n"}
	d := staticDetector(FamilyTest, detect.ToolCommand{
		Argv:   []string{"npm", "test"},
		Parser: ParserJest,
	})
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyTest)
	if !r.Success {
		t.Fatal("Expected success")
	}
	if r.Stats == nil || r.Stats.Passed != 3 || r.Stats.Total != 3 {
		t.Errorf("Stats not captured: %+v", r.Stats)
	}
}

func TestCollectPerPackageAggregation(t *testing.T) {
	h := &fakeHost{
		exitCode: 2,
		output:   "src/a.ts(1,1): error TS1005: ';' expected.\n",
	}
	d := staticDetector(FamilyTypecheck, detect.ToolCommand{
		Argv:   []string{"tsc", "--noEmit"},
		Parser: ParserTSC,
	}, "packages/web", "packages/api")
	c := NewCollector(h, d)

	r := c.Collect(context.Background(), FamilyTypecheck)
	if len(h.calls) != 2 {
		t.Fatalf("Expected one run per package, got %d", len(h.calls))
	}
	if h.dirs[0] != "packages/web" || h.dirs[1] != "packages/api" {
		t.Errorf("Unexpected run directories: %v", h.dirs)
	}

	// The same relative file in two packages must stay distinct
	if len(r.Errors) != 2 {
		t.Fatalf("Expected 2 aggregated errors, got %d", len(r.Errors))
	}
	if r.Errors[0].File != "packages/web/src/a.ts" || r.Errors[1].File != "packages/api/src/a.ts" {
		t.Errorf("Package prefixing failed: %s, %s", r.Errors[0].File, r.Errors[1].File)
	}
}

func TestCollectAllAndCounting(t *testing.T) {
	h := &fakeHost{
		exitCode: 2,
		output:   "src/a.ts(1,1): error TS1005: ';' expected.\n",
	}
	d := staticDetector(FamilyTypecheck, detect.ToolCommand{
		Argv:   []string{"tsc"},
		Parser: ParserTSC,
	})
	c := NewCollector(h, d, WithFamilies(FamilyTypecheck, FamilyLint))

	results := c.CollectAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !results[1].Skipped {
		t.Error("Lint has no tool configured and should be skipped")
	}
	if CountErrors(results) != 1 {
		t.Errorf("CountErrors = %d, want 1", CountErrors(results))
	}
	if all := AllDiagnostics(results); len(all) != 1 {
		t.Errorf("AllDiagnostics returned %d, want 1", len(all))
	}
}
