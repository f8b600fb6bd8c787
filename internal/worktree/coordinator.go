package worktree

import (
	"context"
	"fmt"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
)

// Coordinator stages and commits changes inside a worktree. It never
// takes the structural lock; concurrent syncs on the *same* agent are a
// caller precondition, not arbitrated here.
type Coordinator struct {
	cfg *config.Config
	reg *registry.Registry
	gw  Gateway
}

// NewCoordinator creates a commit coordinator.
func NewCoordinator(cfg *config.Config, reg *registry.Registry, gw Gateway) *Coordinator {
	return &Coordinator{cfg: cfg, reg: reg, gw: gw}
}

// Sync stages all changes in the agent's worktree and commits them,
// returning the new head sha. A clean worktree is a no-op returning the
// previous head unchanged. A gateway failure leaves the record dirty
// with no head change, safe to retry.
func (c *Coordinator) Sync(ctx context.Context, h *Handle, message string, author git.Signature) (string, error) {
	fail := func(err error) (string, error) {
		return "", &OpError{Op: "sync", AgentID: h.AgentID, Err: err}
	}

	rec, err := c.reg.Get(h.AgentID)
	if err != nil {
		return fail(err)
	}
	switch rec.State {
	case registry.StateOrphaned:
		return fail(ErrOrphaned)
	case registry.StateSpawning, registry.StateRemoving:
		return fail(fmt.Errorf("%w (state %s)", ErrInProgress, rec.State))
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.GitTimeout)
	defer cancel()

	report, err := c.gw.Status(gctx, h.Path)
	if err != nil {
		return fail(err)
	}
	if report.Clean {
		// Nothing to commit. Make sure we have a head to report.
		if rec.HeadSHA == "" {
			head, err := c.gw.HeadSHA(gctx, h.Path)
			if err != nil {
				return fail(err)
			}
			rec.HeadSHA = head
			_ = c.reg.Put(rec)
		}
		if rec.State == registry.StateDirty {
			_ = c.reg.Transition(rec, registry.StateActive)
		}
		return rec.HeadSHA, nil
	}

	if err := c.reg.Transition(rec, registry.StateCommitting); err != nil {
		return fail(err)
	}

	sha, err := c.gw.Commit(gctx, h.Path, message, author)
	if err != nil {
		_ = c.reg.Transition(rec, registry.StateDirty)
		return fail(err)
	}

	rec.HeadSHA = sha
	if err := c.reg.Transition(rec, registry.StateActive); err != nil {
		return fail(err)
	}

	return sha, nil
}
