package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/style"
)

var (
	syncAuthorName  string
	syncAuthorEmail string
)

var syncCmd = &cobra.Command{
	Use:   "sync <agentId> <message>",
	Short: "Commit all changes in an agent's worktree",
	Long: `Stage and commit all changes in an agent's worktree, printing the
new head commit.

A clean worktree is a no-op that prints the previous head unchanged.
Syncs on different agents run in parallel; two syncs on the same agent
must not run concurrently.

Examples:
  wr sync toast "checkpoint: parser rewrite"
  wr sync toast "wip" --author-name toast --author-email toast@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncAuthorName, "author-name", "", "Commit author name (default: agent id)")
	syncCmd.Flags().StringVar(&syncAuthorEmail, "author-email", "", "Commit author email (default: <agentId>@warrig.local)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	agentID, message := args[0], args[1]

	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	handle, err := c.manager.Handle(agentID)
	if err != nil {
		return err
	}

	author := git.Signature{Name: syncAuthorName, Email: syncAuthorEmail}
	if author.Name == "" {
		author.Name = agentID
	}
	if author.Email == "" {
		author.Email = agentID + "@warrig.local"
	}

	sha, err := c.coordinator.Sync(cmd.Context(), handle, message, author)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s at %s\n", style.CheckPrefix, style.Bold.Render(agentID), shortSHA(sha))
	return nil
}
