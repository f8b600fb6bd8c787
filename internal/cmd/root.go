// Package cmd provides CLI commands for the wr tool.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/steveyegge/warrig/internal/cli"
	"github.com/steveyegge/warrig/internal/worktree"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     cli.Name(),
	Short:   "War Rig - agent worktree lifecycle manager",
	Version: Version,
	Long: `War Rig (wr) manages ephemeral, isolated worktrees branched off a
shared primary repository, so multiple autonomous agents can read,
modify, and commit code concurrently without interfering with one
another or corrupting the shared repository's metadata.

Structural operations (spawn, nuke, reconcile) are serialized per
repository; status and sync run in parallel across agents.`,
	SilenceUsage: true,
}

// repoFlag overrides repository discovery; empty means walk up from cwd.
var repoFlag string

// Exit codes for scripting callers.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitDirty   = 2
	ExitTimeout = 3
)

// exitCodeFor maps an error to the CLI exit code contract. Idempotent
// no-ops return nil errors and therefore ExitOK.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, worktree.ErrDirty):
		return ExitDirty
	case worktree.IsTimeout(err):
		return ExitTimeout
	}
	return ExitFailure
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	err := rootCmd.Execute()
	return exitCodeFor(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Primary repository root (default: discovered from cwd)")
}
