package worktree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/registry"
)

// Manager orchestrates spawn and nuke against the gateway and registry
// under the structural lock. It executes lifecycle decisions; it never
// makes them on the caller's behalf.
type Manager struct {
	cfg  *config.Config
	reg  *registry.Registry
	gw   Gateway
	lock *StructuralLock
}

// NewManager creates a lifecycle manager. The lock must be the same
// instance the reconciler uses for this repository.
func NewManager(cfg *config.Config, reg *registry.Registry, gw Gateway, lock *StructuralLock) *Manager {
	return &Manager{cfg: cfg, reg: reg, gw: gw, lock: lock}
}

// validateAgentID rejects identifiers that cannot safely derive a path
// and branch name.
func validateAgentID(agentID string) error {
	if agentID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAgentID)
	}
	for _, r := range agentID {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("%w: %q contains %q (allowed: letters, digits, - and _)",
				ErrInvalidAgentID, agentID, r)
		}
	}
	return nil
}

// gitCtx bounds a gateway call with the configured timeout.
func (m *Manager) gitCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.GitTimeout)
}

// Handle returns the handle for an agent's worktree, if one exists.
func (m *Manager) Handle(agentID string) (*Handle, error) {
	rec, err := m.reg.Get(agentID)
	if err != nil {
		return nil, err
	}
	return handleFor(rec), nil
}

// Spawn creates a worktree for an agent, branched from baseRef (HEAD if
// empty). The path and branch derive deterministically from the agent
// id; a collision is a hard error, never silently renamed.
//
// Spawn is idempotent for callers that retry after a timeout: an
// existing worktree for the same agent and same base ref returns the
// existing handle without touching the gateway. The same agent with a
// different base ref is refused.
func (m *Manager) Spawn(ctx context.Context, agentID, baseRef string) (*Handle, error) {
	fail := func(err error) (*Handle, error) {
		return nil, &OpError{Op: "spawn", AgentID: agentID, Err: err}
	}

	if err := validateAgentID(agentID); err != nil {
		return fail(err)
	}
	if baseRef == "" {
		baseRef = "HEAD"
	}

	release, err := m.lock.Acquire()
	if err != nil {
		return fail(err)
	}
	defer release()

	if err := m.reg.CheckIntegrity(); err != nil {
		return fail(err)
	}

	rec, err := m.reg.Get(agentID)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return fail(err)
	}
	if err == nil && rec.State != registry.StateRemoved {
		switch rec.State {
		case registry.StateActive, registry.StateDirty, registry.StateCommitting:
			if rec.BaseRef != baseRef {
				return fail(fmt.Errorf("%w: have %s, requested %s",
					ErrBaseRefMismatch, rec.BaseRef, baseRef))
			}
			return handleFor(rec), nil
		case registry.StateOrphaned:
			return fail(ErrOrphaned)
		default: // spawning, removing
			return fail(fmt.Errorf("%w (state %s)", ErrInProgress, rec.State))
		}
	}

	path := m.cfg.WorktreePath(agentID)
	branch := m.cfg.BranchName(agentID)

	if err := m.checkCollisions(ctx, agentID, path, branch); err != nil {
		return fail(err)
	}

	// Durable intent before the gateway side effect: if we crash past
	// this point, the reconciler can tell how far spawn progressed.
	rec = registry.NewRecord(agentID, path, branch, baseRef)
	if err := m.reg.Put(rec); err != nil {
		return fail(err)
	}

	gctx, cancel := m.gitCtx(ctx)
	defer cancel()
	if err := m.gw.CreateWorktree(gctx, path, branch, baseRef); err != nil {
		if isTransient(err) {
			// Outcome unknown; leave the spawning record for the
			// reconciler to complete or purge on its next pass.
			return fail(err)
		}
		// Fatal: roll back the record and clean up any partial state.
		_ = m.reg.Delete(agentID)
		cctx, ccancel := m.gitCtx(context.Background())
		defer ccancel()
		_ = m.gw.RemoveWorktree(cctx, path, true)
		return fail(err)
	}

	if head, err := m.gw.HeadSHA(gctx, path); err == nil {
		rec.HeadSHA = head
	}
	if err := m.reg.Transition(rec, registry.StateActive); err != nil {
		return fail(err)
	}

	return handleFor(rec), nil
}

// checkCollisions verifies the deterministic path and branch are free,
// both in the registry and in the gateway's authoritative listing.
func (m *Manager) checkCollisions(ctx context.Context, agentID, path, branch string) error {
	records, err := m.reg.List()
	if err != nil {
		return err
	}
	for _, other := range records {
		if other.AgentID == agentID || other.State == registry.StateRemoved {
			continue
		}
		if other.Path == path {
			return fmt.Errorf("%w: %s (owned by agent %s)", ErrPathCollision, path, other.AgentID)
		}
		if other.Branch == branch {
			return fmt.Errorf("%w: %s (owned by agent %s)", ErrBranchCollision, branch, other.AgentID)
		}
	}

	gctx, cancel := m.gitCtx(ctx)
	defer cancel()
	worktrees, err := m.gw.ListWorktrees(gctx)
	if err != nil {
		return err
	}
	for _, wt := range worktrees {
		if wt.Path == path {
			return fmt.Errorf("%w: %s (unregistered worktree)", ErrPathCollision, path)
		}
		if wt.Branch != "" && wt.Branch == branch {
			return fmt.Errorf("%w: %s (checked out at %s)", ErrBranchCollision, branch, wt.Path)
		}
	}

	return nil
}

// Nuke destroys an agent's worktree. A missing record is success (nuke
// is idempotent). Without force, uncommitted changes refuse the
// operation with a summary of what would be lost.
func (m *Manager) Nuke(ctx context.Context, agentID string, force bool) error {
	fail := func(err error) error {
		return &OpError{Op: "nuke", AgentID: agentID, Err: err}
	}

	if err := validateAgentID(agentID); err != nil {
		return fail(err)
	}

	release, err := m.lock.Acquire()
	if err != nil {
		return fail(err)
	}
	defer release()

	if err := m.reg.CheckIntegrity(); err != nil {
		return fail(err)
	}

	rec, err := m.reg.Get(agentID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fail(err)
	}
	if rec.State == registry.StateOrphaned {
		return fail(ErrOrphaned)
	}

	if !force {
		gctx, cancel := m.gitCtx(ctx)
		report, err := m.gw.Status(gctx, rec.Path)
		cancel()
		if err != nil {
			return fail(err)
		}
		if !report.Clean {
			return fail(&DirtyError{
				AgentID: agentID,
				Summary: report.Summary(),
				Files:   report.Files(),
			})
		}
	}

	if err := m.reg.Transition(rec, registry.StateRemoving); err != nil {
		return fail(err)
	}

	gctx, cancel := m.gitCtx(ctx)
	defer cancel()
	if err := m.gw.RemoveWorktree(gctx, rec.Path, force); err != nil {
		// Leave the record in removing; the reconciler retries or
		// escalates on its next pass.
		return fail(err)
	}

	if err := m.reg.Transition(rec, registry.StateRemoved); err != nil {
		return fail(err)
	}
	if err := m.reg.Delete(agentID); err != nil {
		return fail(err)
	}

	return nil
}

// managedBranch reports whether a branch belongs to this manager's
// namespace, and if so which agent it maps to.
func managedBranch(cfg *config.Config, branch string) (string, bool) {
	if branch == "" || !strings.HasPrefix(branch, cfg.BranchPrefix) {
		return "", false
	}
	agent := strings.TrimPrefix(branch, cfg.BranchPrefix)
	return agent, agent != ""
}
