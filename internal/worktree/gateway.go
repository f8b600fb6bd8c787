// Package worktree provides the worktree lifecycle core: spawning,
// inspecting, synchronizing, reconciling, and destroying per-agent
// worktrees branched off one primary repository.
package worktree

import (
	"context"

	"github.com/steveyegge/warrig/internal/git"
)

// Gateway is the capability surface the core consumes for all repository
// access. The core never bypasses it to touch the filesystem or git
// metadata directly. The git-backed implementation is *git.Repo; tests
// substitute an in-memory fake.
//
// Every call is synchronous and individually atomic from the core's
// perspective; callers bound execution with the context.
type Gateway interface {
	// ListWorktrees returns the authoritative worktree list, including
	// the primary working tree.
	ListWorktrees(ctx context.Context) ([]git.Worktree, error)

	// CreateWorktree creates a worktree at path on a new branch starting
	// from baseRef.
	CreateWorktree(ctx context.Context, path, branch, baseRef string) error

	// RemoveWorktree removes the worktree at path and prunes metadata.
	RemoveWorktree(ctx context.Context, path string, force bool) error

	// Status reports the clean/dirty state of the worktree at path.
	Status(ctx context.Context, path string) (*git.StatusReport, error)

	// Commit stages all changes at path and commits them, returning the
	// new head sha.
	Commit(ctx context.Context, path, message string, author git.Signature) (string, error)

	// HeadSHA returns the commit hash at HEAD of the worktree at path.
	HeadSHA(ctx context.Context, path string) (string, error)
}
