// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"codemedic/internal/action"
	"codemedic/internal/diag"
)

var projectPath string

// cliEmitter renders engine events for the terminal
type cliEmitter struct{}

func (cliEmitter) Emit(eventName string, payload interface{}) {
	switch eventName {
	case "progress":
		if m, ok := payload.(map[string]interface{}); ok {
			color.New(color.FgCyan).Fprintf(os.Stderr, "• %v\n", m["message"])
		}
	case "terminal":
		if m, ok := payload.(map[string]interface{}); ok {
			fmt.Fprint(os.Stdout, m["data"])
		}
	case "rollback:triggered":
		color.New(color.FgYellow).Fprintln(os.Stderr, "! rollback triggered")
	}
}

func main() {
	root := &cobra.Command{
		Use:   "codemedic",
		Short: "Verification-and-recovery engine for AI-driven code changes",
		Long: "codemedic applies file and shell mutations to a project, re-measures\n" +
			"compiler/linter/test diagnostics after each batch, and restores prior\n" +
			"state when the project got worse.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&projectPath, "project", "p", ".", "project directory")

	root.AddCommand(applyCmd(), checkCmd(), runCmd(), checkpointCmd(), historyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// plan is the on-disk shape of an action batch
type plan struct {
	Actions []action.Action `yaml:"actions"`
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Apply a batch of actions with baseline capture and rollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var p plan
			if err := yaml.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("parse plan: %w", err)
			}
			if len(p.Actions) == 0 {
				return fmt.Errorf("plan has no actions")
			}

			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()
			session.SetEmitter(cliEmitter{})

			result, err := session.ApplyBatch(cmd.Context(), p.Actions)
			if err != nil {
				return err
			}

			for _, qa := range result.Actions {
				printAction(qa)
			}
			fmt.Println()
			fmt.Println(result.Report)
			if result.RolledBack {
				color.New(color.FgYellow).Printf("Rolled back %d file(s)\n", len(result.Rollback.Restored))
			}
			return nil
		},
	}
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run all configured diagnostics and print per-family results",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()
			session.SetEmitter(cliEmitter{})

			results := session.Verify(cmd.Context())
			failed := 0
			for _, r := range results {
				printFamily(r)
				if !r.Skipped && !r.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command>",
		Short: "Run a shell command in a pseudo-terminal with safety checks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()
			session.SetEmitter(cliEmitter{})

			return session.RunInteractive(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage named restore points",
	}

	var name, description string
	create := &cobra.Command{
		Use:   "create <path>...",
		Short: "Snapshot the given files under a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()

			cp, err := session.CreateCheckpoint(name, args, description)
			if err != nil {
				return err
			}
			fmt.Printf("Created checkpoint %s (%s, %d files)\n", cp.ID, cp.Name, len(cp.Files))
			return nil
		},
	}
	create.Flags().StringVarP(&name, "name", "n", "", "checkpoint name")
	create.Flags().StringVarP(&description, "description", "d", "", "checkpoint description")
	create.MarkFlagRequired("name")

	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Write a checkpoint's files back to the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()

			result, err := session.RestoreCheckpoint(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d file(s)\n", len(result.Restored))
			for _, f := range result.Failures {
				color.New(color.FgRed).Printf("  failed: %s: %s\n", f.Path, f.Err)
			}
			if !result.Success {
				return fmt.Errorf("restore finished with %d failure(s)", len(result.Failures))
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List retained checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()

			for _, cp := range session.Checkpoints().List() {
				fmt.Printf("%s  %-20s  %s\n", cp.Timestamp.Format("2006-01-02 15:04:05"), cp.Name, cp.ID)
			}
			return nil
		},
	}

	cmd.AddCommand(create, restore, list)
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show executed actions from the session store",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := NewSession(context.Background(), projectPath)
			if err != nil {
				return err
			}
			defer session.Close()

			records, err := session.History(limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				target := r.Path
				if r.Kind == "shell" {
					target = r.Command
				}
				fmt.Printf("%s  %-7s  %-9s  %s\n", r.EnqueuedAt.Format("2006-01-02 15:04:05"), r.Kind, r.Status, target)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "maximum rows")
	return cmd
}

func printAction(qa *action.QueuedAction) {
	target := qa.Action.Path
	if qa.Action.Kind == action.KindShell {
		target = qa.Action.Command
	}
	if qa.Status == action.StatusSuccess {
		line := fmt.Sprintf("✓ %-7s %s", qa.Action.Kind, target)
		if qa.Result != nil && qa.Result.Diff != nil {
			line += fmt.Sprintf(" (+%d -%d)", qa.Result.Diff.Added, qa.Result.Diff.Removed)
		}
		color.New(color.FgGreen).Println(line)
	} else {
		msg := ""
		if qa.Result != nil {
			msg = qa.Result.Error
		}
		color.New(color.FgRed).Printf("✗ %-7s %s: %s\n", qa.Action.Kind, target, msg)
	}
}

func printFamily(r *diag.Result) {
	switch {
	case r.Skipped:
		color.New(color.FgHiBlack).Printf("- %-10s skipped (not configured)\n", r.Family)
	case r.Success:
		color.New(color.FgGreen).Printf("✓ %-10s ok (%d warnings, %s)\n", r.Family, len(r.Warnings), r.Duration.Round(10*time.Millisecond))
	default:
		color.New(color.FgRed).Printf("✗ %-10s %d error(s)\n", r.Family, len(r.Errors))
		for i, e := range r.Errors {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(r.Errors)-10)
				break
			}
			loc := e.File
			if e.Line > 0 {
				loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
			}
			fmt.Printf("  %s %s %s\n", loc, e.Code, strings.TrimSpace(e.Message))
		}
	}
}
