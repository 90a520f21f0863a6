// internal/detect/node.go
package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// packageJSON is the subset of package.json the detector inspects
type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Workspaces      []string          `json:"workspaces"`
}

// tsconfigJSON is the subset of tsconfig.json the detector inspects
type tsconfigJSON struct {
	References []struct {
		Path string `json:"path"`
	} `json:"references"`
}

// NodeDetector probes a Node/TypeScript project for its tool commands.
// It is intentionally thin: command construction only, no execution.
type NodeDetector struct {
	root string
	pkg  *packageJSON
	// runner is the package-manager exec prefix, e.g. ["npx"]
	runner []string
	// tscBuildMode is set when tsconfig declares project references,
	// which requires tsc --build instead of single-project mode
	tscBuildMode bool
	packages     []string
}

// NewNodeDetector probes the project at root. Returns a detector even
// when no package.json exists; every family is then unconfigured.
func NewNodeDetector(root string) *NodeDetector {
	d := &NodeDetector{root: root}
	d.probe()
	return d
}

func (d *NodeDetector) probe() {
	data, err := os.ReadFile(filepath.Join(d.root, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if json.Unmarshal(data, &pkg) != nil {
		return
	}
	d.pkg = &pkg
	d.runner = d.detectRunner()
	d.tscBuildMode = d.detectProjectReferences()
	d.packages = d.detectWorkspaces()
}

// detectRunner picks the package-manager exec prefix from lockfiles
func (d *NodeDetector) detectRunner() []string {
	switch {
	case d.exists("pnpm-lock.yaml"):
		return []string{"pnpm", "exec"}
	case d.exists("yarn.lock"):
		return []string{"yarn"}
	case d.exists("bun.lockb"):
		return []string{"bunx"}
	default:
		return []string{"npx"}
	}
}

func (d *NodeDetector) detectProjectReferences() bool {
	data, err := os.ReadFile(filepath.Join(d.root, "tsconfig.json"))
	if err != nil {
		return false
	}
	var cfg tsconfigJSON
	if json.Unmarshal(data, &cfg) != nil {
		return false
	}
	return len(cfg.References) > 0
}

// detectWorkspaces expands workspace globs into package directories
func (d *NodeDetector) detectWorkspaces() []string {
	if d.pkg == nil || len(d.pkg.Workspaces) == 0 {
		return nil
	}
	var pkgs []string
	for _, pattern := range d.pkg.Workspaces {
		matches, err := filepath.Glob(filepath.Join(d.root, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if _, err := os.Stat(filepath.Join(match, "package.json")); err == nil {
				rel, err := filepath.Rel(d.root, match)
				if err == nil {
					pkgs = append(pkgs, rel)
				}
			}
		}
	}
	sort.Strings(pkgs)
	return pkgs
}

func (d *NodeDetector) exists(name string) bool {
	_, err := os.Stat(filepath.Join(d.root, name))
	return err == nil
}

func (d *NodeDetector) hasDep(name string) bool {
	if d.pkg == nil {
		return false
	}
	if _, ok := d.pkg.Dependencies[name]; ok {
		return true
	}
	_, ok := d.pkg.DevDependencies[name]
	return ok
}

func (d *NodeDetector) hasScript(name string) bool {
	if d.pkg == nil {
		return false
	}
	_, ok := d.pkg.Scripts[name]
	return ok
}

// hasESLintConfig checks the flat and legacy config locations
func (d *NodeDetector) hasESLintConfig() bool {
	for _, name := range []string{
		"eslint.config.js", "eslint.config.mjs", "eslint.config.cjs",
		".eslintrc", ".eslintrc.js", ".eslintrc.cjs", ".eslintrc.json", ".eslintrc.yml", ".eslintrc.yaml",
	} {
		if d.exists(name) {
			return true
		}
	}
	return d.hasDep("eslint")
}

func (d *NodeDetector) hasStylelintConfig() bool {
	for _, name := range []string{
		"stylelint.config.js", "stylelint.config.mjs", ".stylelintrc", ".stylelintrc.json", ".stylelintrc.yml",
	} {
		if d.exists(name) {
			return true
		}
	}
	return d.hasDep("stylelint")
}

// Command returns the invocation for a family, or ok = false when the
// project is not configured for it
func (d *NodeDetector) Command(family Family) (ToolCommand, bool) {
	if d.pkg == nil {
		return ToolCommand{}, false
	}

	run := func(args ...string) []string {
		return append(append([]string{}, d.runner...), args...)
	}

	switch family {
	case FamilyTypecheck:
		if !d.exists("tsconfig.json") {
			return ToolCommand{}, false
		}
		if d.tscBuildMode {
			// Project references require batch build mode
			return ToolCommand{
				Argv:   run("tsc", "--build", "--pretty", "false"),
				Parser: ParserTSC,
			}, true
		}
		return ToolCommand{
			Argv:          run("tsc", "--noEmit", "--pretty", "false"),
			Parser:        ParserTSC,
			SupportsFiles: true,
		}, true

	case FamilyBuild:
		if !d.hasScript("build") {
			return ToolCommand{}, false
		}
		pm := d.runner[0]
		if pm == "npx" {
			pm = "npm"
		}
		if pm == "bunx" {
			pm = "bun"
		}
		return ToolCommand{
			Argv:   []string{pm, "run", "build"},
			Parser: ParserGeneric,
		}, true

	case FamilyLint:
		if !d.hasESLintConfig() {
			return ToolCommand{}, false
		}
		return ToolCommand{
			Argv:          run("eslint", "--format", "json", "."),
			Parser:        ParserESLint,
			SupportsFiles: true,
		}, true

	case FamilyStylelint:
		if !d.hasStylelintConfig() {
			return ToolCommand{}, false
		}
		return ToolCommand{
			Argv:          run("stylelint", "--formatter", "json", "**/*.css"),
			Parser:        ParserStylelint,
			SupportsFiles: true,
		}, true

	case FamilyTest:
		if !d.hasScript("test") {
			return ToolCommand{}, false
		}
		pm := d.runner[0]
		if pm == "npx" {
			pm = "npm"
		}
		if pm == "bunx" {
			pm = "bun"
		}
		return ToolCommand{
			Argv:          []string{pm, "test", "--"},
			Parser:        ParserJest,
			SupportsFiles: true,
		}, true
	}

	return ToolCommand{}, false
}

// Packages returns monorepo workspace package dirs
func (d *NodeDetector) Packages() []string {
	return d.packages
}

// scopedArgs appends target files for family runs that support scoping.
// eslint replaces its "." target rather than appending to it.
func scopedArgs(cmd ToolCommand, files []string) []string {
	argv := append([]string{}, cmd.Argv...)
	if cmd.Parser == ParserESLint && len(argv) > 0 && argv[len(argv)-1] == "." {
		argv = argv[:len(argv)-1]
	}
	return append(argv, files...)
}

// ScopedArgv builds the argv for a run targeted at specific files
func ScopedArgv(cmd ToolCommand, files []string) []string {
	if len(files) == 0 || !cmd.SupportsFiles {
		return cmd.Argv
	}
	return scopedArgs(cmd, files)
}

// IsScoped reports whether files can narrow this command
func IsScoped(cmd ToolCommand, files []string) bool {
	return len(files) > 0 && cmd.SupportsFiles
}
