package worktree

import (
	"context"
	"time"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
)

// Reconciler repairs divergence between the registry and the gateway's
// authoritative worktree list, caused by crashes or external
// interference. It runs under the same structural lock as spawn/nuke and
// is safe to run repeatedly: with no external change, a second pass is a
// no-op. It is the sole authority over orphaned records.
type Reconciler struct {
	cfg  *config.Config
	reg  *registry.Registry
	gw   Gateway
	lock *StructuralLock

	// now is swappable for staleness tests.
	now func() time.Time
}

// NewReconciler creates a reconciler. The lock must be the same instance
// the lifecycle manager uses for this repository.
func NewReconciler(cfg *config.Config, reg *registry.Registry, gw Gateway, lock *StructuralLock) *Reconciler {
	return &Reconciler{cfg: cfg, reg: reg, gw: gw, lock: lock, now: time.Now}
}

// Report describes what one reconciliation pass found and did. With
// DryRun set, the same findings are reported without any repair applied.
type Report struct {
	// Purged lists agents whose records had no gateway worktree; the
	// filesystem ground truth wins and the records were removed.
	Purged []string `json:"purged,omitempty"`

	// Promoted lists stale spawning records whose worktree turned out to
	// exist; the pending spawn was completed to active.
	Promoted []string `json:"promoted,omitempty"`

	// Removed lists worktrees removed: stuck removals retried, plus
	// foreign worktrees under the remove policy.
	Removed []string `json:"removed,omitempty"`

	// Adopted lists foreign worktrees adopted under the adopt policy.
	Adopted []string `json:"adopted,omitempty"`

	// Orphaned lists agents newly marked orphaned (a retry failed, or a
	// foreign worktree could not be removed).
	Orphaned []string `json:"orphaned,omitempty"`

	// Resettled lists stale committing records settled back to active or
	// dirty from the worktree's observed status.
	Resettled []string `json:"resettled,omitempty"`

	// DryRun is true when no repair was applied.
	DryRun bool `json:"dry_run,omitempty"`
}

// Empty reports whether the pass found nothing to repair.
func (r *Report) Empty() bool {
	return len(r.Purged) == 0 && len(r.Promoted) == 0 && len(r.Removed) == 0 &&
		len(r.Adopted) == 0 && len(r.Orphaned) == 0 && len(r.Resettled) == 0
}

// Reconcile compares registry state against the gateway worktree list
// and repairs divergence. With dryRun it only reports.
func (r *Reconciler) Reconcile(ctx context.Context, dryRun bool) (*Report, error) {
	release, err := r.lock.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.reg.CheckIntegrity(); err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
	worktrees, err := r.gw.ListWorktrees(gctx)
	cancel()
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]git.Worktree, len(worktrees))
	for _, wt := range worktrees {
		byPath[wt.Path] = wt
	}

	records, err := r.reg.List()
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]bool, len(records))
	for _, rec := range records {
		recorded[rec.Path] = true
	}

	report := &Report{DryRun: dryRun}
	now := r.now()

	for _, rec := range records {
		if rec.State == registry.StateRemoved {
			// A crash between removed and purge; finish the purge.
			report.Purged = append(report.Purged, rec.AgentID)
			if !dryRun {
				if err := r.reg.Delete(rec.AgentID); err != nil {
					return nil, err
				}
			}
			continue
		}

		wt, exists := byPath[rec.Path]
		if !exists {
			// No worktree behind the record, whatever its state: the
			// filesystem ground truth wins, treat as already removed.
			report.Purged = append(report.Purged, rec.AgentID)
			if !dryRun {
				if err := r.reg.Delete(rec.AgentID); err != nil {
					return nil, err
				}
			}
			continue
		}

		switch rec.State {
		case registry.StateSpawning:
			if rec.Stale(r.cfg.StaleThreshold, now) {
				// The gateway side effect landed; complete the spawn.
				report.Promoted = append(report.Promoted, rec.AgentID)
				if !dryRun {
					rec.HeadSHA = wt.Head
					if err := r.reg.Transition(rec, registry.StateActive); err != nil {
						return nil, err
					}
				}
			}

		case registry.StateRemoving:
			if rec.Stale(r.cfg.StaleThreshold, now) {
				r.retryRemove(ctx, rec, report, dryRun)
			}

		case registry.StateCommitting:
			if rec.Stale(r.cfg.StaleThreshold, now) {
				r.settleCommit(ctx, rec, report, dryRun)
			}

		case registry.StateOrphaned:
			r.resolveOrphan(ctx, rec, report, dryRun)
		}
	}

	// Gateway worktrees in our branch namespace with no record: mark
	// orphaned, then apply the configured adopt-or-remove policy.
	for _, wt := range worktrees {
		if recorded[wt.Path] {
			continue
		}
		agentID, ok := managedBranch(r.cfg, wt.Branch)
		if !ok {
			continue // primary worktree or foreign namespace
		}
		r.handleForeign(ctx, agentID, wt, report, dryRun)
	}

	return report, nil
}

// retryRemove retries a stuck removal once; if it still fails the record
// is marked orphaned for escalation.
func (r *Reconciler) retryRemove(ctx context.Context, rec *registry.Record, report *Report, dryRun bool) {
	if dryRun {
		report.Removed = append(report.Removed, rec.AgentID)
		return
	}
	gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
	defer cancel()
	if err := r.gw.RemoveWorktree(gctx, rec.Path, true); err != nil {
		report.Orphaned = append(report.Orphaned, rec.AgentID)
		_ = r.reg.Transition(rec, registry.StateOrphaned)
		return
	}
	report.Removed = append(report.Removed, rec.AgentID)
	_ = r.reg.Delete(rec.AgentID)
}

// settleCommit resolves a commit whose outcome is unknown by observing
// the worktree: a clean tree means the commit landed.
func (r *Reconciler) settleCommit(ctx context.Context, rec *registry.Record, report *Report, dryRun bool) {
	report.Resettled = append(report.Resettled, rec.AgentID)
	if dryRun {
		return
	}
	gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
	defer cancel()
	status, err := r.gw.Status(gctx, rec.Path)
	if err != nil {
		_ = r.reg.Transition(rec, registry.StateOrphaned)
		return
	}
	if status.Clean {
		if head, err := r.gw.HeadSHA(gctx, rec.Path); err == nil {
			rec.HeadSHA = head
		}
		_ = r.reg.Transition(rec, registry.StateActive)
	} else {
		_ = r.reg.Transition(rec, registry.StateDirty)
	}
}

// resolveOrphan applies the configured policy to a record previously
// marked orphaned. Only the reconciler may move a record out of that
// state.
func (r *Reconciler) resolveOrphan(ctx context.Context, rec *registry.Record, report *Report, dryRun bool) {
	switch r.cfg.OrphanPolicy {
	case config.OrphanAdopt:
		report.Adopted = append(report.Adopted, rec.AgentID)
		if !dryRun {
			_ = r.reg.Transition(rec, registry.StateActive)
		}
	case config.OrphanRemove:
		if dryRun {
			report.Removed = append(report.Removed, rec.AgentID)
			return
		}
		gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
		defer cancel()
		if err := r.gw.RemoveWorktree(gctx, rec.Path, true); err != nil {
			// Still orphaned; retried next pass.
			return
		}
		report.Removed = append(report.Removed, rec.AgentID)
		_ = r.reg.Delete(rec.AgentID)
	}
}

// handleForeign deals with a worktree in our namespace that has no
// record: adopt it as ours or remove it as stale, per policy.
func (r *Reconciler) handleForeign(ctx context.Context, agentID string, wt git.Worktree, report *Report, dryRun bool) {
	switch r.cfg.OrphanPolicy {
	case config.OrphanAdopt:
		report.Adopted = append(report.Adopted, agentID)
		if !dryRun {
			rec := registry.NewRecord(agentID, wt.Path, wt.Branch, "")
			rec.HeadSHA = wt.Head
			rec.State = registry.StateActive
			_ = r.reg.Put(rec)
		}
	case config.OrphanRemove:
		if dryRun {
			report.Removed = append(report.Removed, agentID)
			return
		}
		gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
		defer cancel()
		if err := r.gw.RemoveWorktree(gctx, wt.Path, true); err != nil {
			// Track it so the failure is visible and retried: record
			// the worktree as orphaned.
			rec := registry.NewRecord(agentID, wt.Path, wt.Branch, "")
			rec.State = registry.StateOrphaned
			_ = r.reg.Put(rec)
			report.Orphaned = append(report.Orphaned, agentID)
			return
		}
		report.Removed = append(report.Removed, agentID)
	}
}
