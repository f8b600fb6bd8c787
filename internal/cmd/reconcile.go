package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/warrig/internal/style"
)

var (
	reconcileJSON   bool
	reconcileDryRun bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair divergence between registry and repository",
	Long: `Compare registry records against the repository's actual worktree
list and repair divergence left by crashes or external interference.

Records with no worktree are purged (the filesystem wins). Worktrees in
the managed branch namespace with no record are adopted or removed per
the configured orphan_policy. Records stuck mid-operation past the
staleness threshold are completed, retried once, or marked orphaned.

Safe to run repeatedly: with no external change a second run is a no-op.

Examples:
  wr reconcile
  wr reconcile --dry-run
  wr reconcile --json`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "Output as JSON")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Report divergence without repairing")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	report, err := c.reconciler.Reconcile(cmd.Context(), reconcileDryRun)
	if err != nil {
		return err
	}

	if reconcileJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Empty() {
		fmt.Printf("%s Registry and repository agree; nothing to repair\n", style.CheckPrefix)
		return nil
	}

	printGroup := func(label string, agents []string) {
		if len(agents) == 0 {
			return
		}
		fmt.Printf("%s %s:\n", style.ArrowPrefix, label)
		for _, a := range agents {
			fmt.Printf("    %s\n", a)
		}
	}

	verb := "Repaired"
	if report.DryRun {
		verb = "Would repair"
	}
	fmt.Printf("%s %s:\n", style.Bold.Render(verb), style.Dim.Render("registry/repository divergence"))
	printGroup("purged records (no worktree behind them)", report.Purged)
	printGroup("completed spawns", report.Promoted)
	printGroup("removed worktrees", report.Removed)
	printGroup("adopted worktrees", report.Adopted)
	printGroup("settled commits", report.Resettled)
	if len(report.Orphaned) > 0 {
		fmt.Printf("%s marked orphaned (needs attention):\n", style.WarningPrefix)
		for _, a := range report.Orphaned {
			fmt.Printf("    %s\n", a)
		}
	}
	return nil
}
