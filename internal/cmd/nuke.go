package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/warrig/internal/style"
	"github.com/steveyegge/warrig/internal/worktree"
)

var nukeForce bool

var nukeCmd = &cobra.Command{
	Use:   "nuke <agentId>",
	Short: "Destroy an agent's worktree",
	Long: `Destroy an agent's worktree and its registry record.

SAFETY CHECK: refuses to nuke a worktree with uncommitted changes.
Use --force to bypass the check (LOSES WORK). When forcing over dirty
state interactively, a confirmation prompt is shown.

Nuking an agent with no worktree is a success (idempotent).

Examples:
  wr nuke toast
  wr nuke toast --force`,
	Args: cobra.ExactArgs(1),
	RunE: runNuke,
}

func init() {
	nukeCmd.Flags().BoolVarP(&nukeForce, "force", "f", false, "Bypass the dirty-worktree check (LOSES WORK)")
	rootCmd.AddCommand(nukeCmd)
}

// isStdinTerminal is a var for tests.
var isStdinTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func runNuke(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	if nukeForce && isStdinTerminal() {
		// Peek at dirtiness so the prompt can say what is at stake.
		if handle, err := c.manager.Handle(agentID); err == nil {
			if report, err := c.inspector.Status(cmd.Context(), handle); err == nil && !report.Clean {
				fmt.Printf("%s Worktree for %s has uncommitted changes: %s\n",
					style.WarningPrefix, agentID, report.Summary())
				if !promptYesNo("Nuke anyway and lose this work?") {
					return errors.New("aborted")
				}
			}
		}
	}

	if err := c.manager.Nuke(cmd.Context(), agentID, nukeForce); err != nil {
		var dirty *worktree.DirtyError
		if errors.As(err, &dirty) {
			fmt.Fprintf(os.Stderr, "%s Uncommitted changes in %s: %s\n",
				style.CrossPrefix, agentID, dirty.Summary)
			for _, f := range dirty.Files {
				fmt.Fprintf(os.Stderr, "    %s\n", style.Dim.Render(f))
			}
			fmt.Fprintf(os.Stderr, "  %s use --force to discard\n", style.ArrowPrefix)
		}
		return err
	}

	fmt.Printf("%s Nuked %s\n", style.CheckPrefix, style.Bold.Render(agentID))
	return nil
}
