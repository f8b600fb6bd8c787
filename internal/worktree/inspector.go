package worktree

import (
	"context"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
)

// Inspector determines the clean/dirty state of a worktree. It is
// read-only with respect to the worktree and never takes the structural
// lock: it reads one agent's isolated directory. It does update that
// agent's own record between active and dirty so the registry reflects
// the last observation.
type Inspector struct {
	cfg *config.Config
	reg *registry.Registry
	gw  Gateway
}

// NewInspector creates a status inspector.
func NewInspector(cfg *config.Config, reg *registry.Registry, gw Gateway) *Inspector {
	return &Inspector{cfg: cfg, reg: reg, gw: gw}
}

// Status reports the clean/dirty state of an agent's worktree. Used as
// the precondition gate before destructive operations.
func (i *Inspector) Status(ctx context.Context, h *Handle) (*git.StatusReport, error) {
	fail := func(err error) (*git.StatusReport, error) {
		return nil, &OpError{Op: "status", AgentID: h.AgentID, Err: err}
	}

	gctx, cancel := context.WithTimeout(ctx, i.cfg.GitTimeout)
	defer cancel()
	report, err := i.gw.Status(gctx, h.Path)
	if err != nil {
		return fail(err)
	}

	// Reflect the observation on the agent's own record. Lost races
	// with a concurrent structural op are harmless: the record flips
	// back on the next inspection.
	if rec, err := i.reg.Get(h.AgentID); err == nil {
		switch {
		case !report.Clean && rec.State == registry.StateActive:
			_ = i.reg.Transition(rec, registry.StateDirty)
		case report.Clean && rec.State == registry.StateDirty:
			_ = i.reg.Transition(rec, registry.StateActive)
		}
	}

	return report, nil
}
