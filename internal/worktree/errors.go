package worktree

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
)

// Common errors. Structural errors (collisions, dirty refusal, mismatch)
// are returned with no mutation performed.
var (
	// ErrPathCollision means the deterministic worktree path is already
	// claimed by something else. Never silently renamed.
	ErrPathCollision = errors.New("worktree path already in use")

	// ErrBranchCollision means the deterministic branch name is already
	// claimed by something else. Never silently renamed.
	ErrBranchCollision = errors.New("branch already in use")

	// ErrDirty means a destructive operation was refused because the
	// worktree has uncommitted changes. Use force to override.
	ErrDirty = errors.New("worktree has uncommitted changes")

	// ErrBaseRefMismatch means a repeat spawn asked for a different base
	// ref than the existing worktree was created from.
	ErrBaseRefMismatch = errors.New("existing worktree was spawned from a different base ref")

	// ErrInProgress means the record shows an unfinished structural
	// operation; the reconciler repairs these.
	ErrInProgress = errors.New("operation in progress; run reconcile")

	// ErrOrphaned means the record was orphaned by an unclean restart.
	// Only the reconciler may resolve it.
	ErrOrphaned = errors.New("worktree is orphaned; run reconcile")

	// ErrInvalidAgentID means the agent identifier cannot be used to
	// derive a path and branch.
	ErrInvalidAgentID = errors.New("invalid agent id")
)

// OpError wraps a failure with the operation and agent it belongs to, so
// every surfaced error names both.
type OpError struct {
	Op      string
	AgentID string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.AgentID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// DirtyError reports a refused destructive operation together with a
// summary of what would be lost, so the caller can decide whether to
// force.
type DirtyError struct {
	AgentID string
	Summary string
	Files   []string
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("%v (%s)", ErrDirty, e.Summary)
}

// Is lets errors.Is(err, ErrDirty) match DirtyError values.
func (e *DirtyError) Is(target error) bool {
	return target == ErrDirty
}

// IsTimeout reports whether err stems from a gateway call exceeding its
// configured deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsCorruption reports whether err is a registry-corruption failure.
// Corruption is always fatal and never auto-resolved.
func IsCorruption(err error) bool {
	return errors.Is(err, registry.ErrCorrupt)
}

// isTransient reports whether a gateway failure is retryable (lock
// contention, timeout) rather than fatal (invalid ref). Transient
// failures leave the record in its in-progress state for the reconciler;
// fatal failures roll back.
func isTransient(err error) bool {
	return git.IsTransient(err)
}
