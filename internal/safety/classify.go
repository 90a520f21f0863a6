// internal/safety/classify.go
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// VerdictKind is the outcome of classifying a shell command
type VerdictKind int

const (
	// Allow runs the command as-is
	Allow VerdictKind = iota
	// RewriteDeletes replaces the command with tracked delete actions
	RewriteDeletes
	// Block refuses the command outright
	Block
)

// Verdict is the classification of one shell command
type Verdict struct {
	Kind VerdictKind
	// Paths holds the deletion targets for RewriteDeletes
	Paths []string
	// Reason explains a Block
	Reason string
}

var (
	forcePush       = regexp.MustCompile(`\bgit\b.*\bpush\b.*(\s--force\b|\s-f\b|\s--force-with-lease\b)`)
	hardReset       = regexp.MustCompile(`\bgit\b.*\breset\b.*\s--hard\b`)
	historyRewrite  = regexp.MustCompile(`\bgit\b.*\b(filter-branch|filter-repo)\b`)
	gitCleanForce   = regexp.MustCompile(`\bgit\b.*\bclean\b.*\s-[a-zA-Z]*f`)
	shellSeparators = regexp.MustCompile(`(\|\||&&|;|\|)`)
)

// Classify inspects a shell command before execution.
//
// Commands that delete files are rewritten into tracked delete actions
// so destructive shell behavior stays trackable. Known-destructive git
// commands are blocked outright. Everything else is allowed.
func Classify(command string) Verdict {
	trimmed := strings.TrimSpace(command)

	switch {
	case forcePush.MatchString(trimmed):
		return Verdict{Kind: Block, Reason: "force-push rewrites remote history and cannot be rolled back"}
	case hardReset.MatchString(trimmed):
		return Verdict{Kind: Block, Reason: "git reset --hard discards working tree state outside backup tracking"}
	case historyRewrite.MatchString(trimmed):
		return Verdict{Kind: Block, Reason: "history rewrite is irreversible and cannot be rolled back"}
	case gitCleanForce.MatchString(trimmed):
		return Verdict{Kind: Block, Reason: "git clean -f deletes untracked files outside backup tracking"}
	}

	if shellSeparators.MatchString(trimmed) {
		// A delete buried in a compound command cannot be safely
		// rewritten; refuse rather than lose track of it
		for _, segment := range shellSeparators.Split(trimmed, -1) {
			if _, ok := deleteTargets(strings.TrimSpace(segment)); ok {
				return Verdict{Kind: Block, Reason: "file deletion inside a compound shell command is not trackable"}
			}
		}
		return Verdict{Kind: Allow}
	}

	if paths, ok := deleteTargets(trimmed); ok {
		return Verdict{Kind: RewriteDeletes, Paths: paths}
	}

	return Verdict{Kind: Allow}
}

// deleteTargets extracts the target paths of an rm/rmdir invocation
func deleteTargets(command string) ([]string, bool) {
	fields := splitFields(command)
	if len(fields) == 0 {
		return nil, false
	}

	prog := fields[0]
	if prog != "rm" && prog != "rmdir" && !strings.HasSuffix(prog, "/rm") {
		return nil, false
	}

	var paths []string
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "-") {
			continue
		}
		paths = append(paths, f)
	}
	if len(paths) == 0 {
		return nil, false
	}
	return paths, true
}

// splitFields splits a command into fields, honoring simple quoting
func splitFields(command string) []string {
	var fields []string
	var current strings.Builder
	var quote rune

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t':
			if current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}

// Describe renders a verdict for progress messages
func Describe(v Verdict) string {
	switch v.Kind {
	case Block:
		return fmt.Sprintf("blocked: %s", v.Reason)
	case RewriteDeletes:
		return fmt.Sprintf("rewritten into %d tracked delete(s)", len(v.Paths))
	default:
		return "allowed"
	}
}
