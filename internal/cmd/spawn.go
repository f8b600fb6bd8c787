package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/warrig/internal/style"
)

var spawnBase string

var spawnCmd = &cobra.Command{
	Use:   "spawn <agentId>",
	Short: "Create an isolated worktree for an agent",
	Long: `Create an isolated worktree for an agent, branched off the primary
repository.

The worktree path and branch name derive deterministically from the
agent id; a collision with an existing path or branch is a hard error,
never silently renamed. Spawning an agent that already has an active
worktree from the same base ref returns the existing worktree (safe to
retry after a timeout); requesting a different base ref is refused.

Examples:
  wr spawn toast
  wr spawn furiosa --base origin/main`,
	Args: cobra.ExactArgs(1),
	RunE: runSpawn,
}

func init() {
	spawnCmd.Flags().StringVar(&spawnBase, "base", "", "Base ref to branch from (default HEAD)")
	rootCmd.AddCommand(spawnCmd)
}

func runSpawn(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	handle, err := c.manager.Spawn(cmd.Context(), agentID, spawnBase)
	if err != nil {
		return err
	}

	fmt.Printf("%s Spawned %s\n", style.CheckPrefix, style.Bold.Render(agentID))
	fmt.Printf("  %s path:   %s\n", style.ArrowPrefix, handle.Path)
	fmt.Printf("  %s branch: %s\n", style.ArrowPrefix, handle.Branch)
	return nil
}
