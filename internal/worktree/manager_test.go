package worktree

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/warrig/internal/registry"
)

func TestSpawnCreatesWorktreeAndRecord(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	h, err := rig.manager.Spawn(ctx, "toast", "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h.AgentID != "toast" {
		t.Errorf("AgentID = %q, want toast", h.AgentID)
	}
	if want := rig.cfg.WorktreePath("toast"); h.Path != want {
		t.Errorf("Path = %q, want %q", h.Path, want)
	}
	if want := rig.cfg.BranchName("toast"); h.Branch != want {
		t.Errorf("Branch = %q, want %q", h.Branch, want)
	}
	if !rig.gw.has(h.Path) {
		t.Error("gateway has no worktree at the handle path")
	}

	rec, err := rig.reg.Get("toast")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State != registry.StateActive {
		t.Errorf("state = %q, want %q", rec.State, registry.StateActive)
	}
	if rec.BaseRef != "HEAD" {
		t.Errorf("BaseRef = %q, want HEAD (the default)", rec.BaseRef)
	}
	if rec.HeadSHA == "" {
		t.Error("HeadSHA not recorded after spawn")
	}
}

func TestSpawnRepeatSameBaseReturnsExisting(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	first, err := rig.manager.Spawn(ctx, "toast", "main")
	if err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	second, err := rig.manager.Spawn(ctx, "toast", "main")
	if err != nil {
		t.Fatalf("repeat Spawn: %v", err)
	}
	if *first != *second {
		t.Errorf("repeat spawn returned %+v, want %+v", second, first)
	}

	worktrees, err := rig.gw.ListWorktrees(ctx)
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	if len(worktrees) != 1 {
		t.Errorf("repeat spawn created a second worktree: %+v", worktrees)
	}
}

func TestSpawnRepeatDifferentBaseRefused(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.manager.Spawn(ctx, "toast", "main"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	_, err := rig.manager.Spawn(ctx, "toast", "release")
	if !errors.Is(err, ErrBaseRefMismatch) {
		t.Fatalf("Spawn with different base = %v, want ErrBaseRefMismatch", err)
	}
}

func TestSpawnInvalidAgentID(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	for _, bad := range []string{"", "toast/..", "a b", "x\x00y"} {
		if _, err := rig.manager.Spawn(ctx, bad, ""); !errors.Is(err, ErrInvalidAgentID) {
			t.Errorf("Spawn(%q) = %v, want ErrInvalidAgentID", bad, err)
		}
	}
}

func TestSpawnPathCollision(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// Something else already sits at toast's deterministic path.
	rig.gw.plantWorktree(rig.cfg.WorktreePath("toast"), "feature/manual", "abc123")

	_, err := rig.manager.Spawn(ctx, "toast", "")
	if !errors.Is(err, ErrPathCollision) {
		t.Fatalf("Spawn = %v, want ErrPathCollision", err)
	}
	if _, err := rig.reg.Get("toast"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("collision left a record behind: %v", err)
	}
}

func TestSpawnBranchCollision(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.gw.plantWorktree("/elsewhere/manual", rig.cfg.BranchName("toast"), "abc123")

	_, err := rig.manager.Spawn(ctx, "toast", "")
	if !errors.Is(err, ErrBranchCollision) {
		t.Fatalf("Spawn = %v, want ErrBranchCollision", err)
	}
}

func TestSpawnFatalFailureRollsBack(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.gw.createErr = fatalErr()
	if _, err := rig.manager.Spawn(ctx, "toast", "nope"); err == nil {
		t.Fatal("expected spawn failure")
	}

	if _, err := rig.reg.Get("toast"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("fatal failure left a record behind: %v", err)
	}
	if rig.gw.has(rig.cfg.WorktreePath("toast")) {
		t.Error("fatal failure left a worktree behind")
	}

	// The path and branch are free again.
	if _, err := rig.manager.Spawn(ctx, "toast", ""); err != nil {
		t.Fatalf("respawn after fatal failure: %v", err)
	}
}

func TestSpawnTransientFailureLeavesSpawningRecord(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.gw.createErr = transientErr()
	if _, err := rig.manager.Spawn(ctx, "toast", ""); err == nil {
		t.Fatal("expected spawn failure")
	}

	// Outcome unknown: the record stays for the reconciler.
	rig.mustState(t, "toast", registry.StateSpawning)
}

func TestSpawnConcurrentDistinctAgents(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	agents := []string{"toast", "slit", "ace", "capable", "dag"}
	var wg sync.WaitGroup
	errs := make([]error, len(agents))
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent string) {
			defer wg.Done()
			_, errs[i] = rig.manager.Spawn(ctx, agent, "")
		}(i, agent)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Spawn(%s): %v", agents[i], err)
		}
	}

	records, err := rig.reg.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != len(agents) {
		t.Fatalf("registry has %d records, want %d", len(records), len(agents))
	}
	if err := rig.reg.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity after concurrent spawns: %v", err)
	}
}

func TestNukeRemovesWorktreeAndRecord(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	h, err := rig.manager.Spawn(ctx, "toast", "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := rig.manager.Nuke(ctx, "toast", false); err != nil {
		t.Fatalf("Nuke: %v", err)
	}

	if rig.gw.has(h.Path) {
		t.Error("worktree survived nuke")
	}
	if _, err := rig.reg.Get("toast"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("record survived nuke: %v", err)
	}

	// The path and branch are reusable.
	if _, err := rig.manager.Spawn(ctx, "toast", ""); err != nil {
		t.Fatalf("respawn after nuke: %v", err)
	}
}

func TestNukeMissingIsSuccess(t *testing.T) {
	rig := newTestRig(t)

	if err := rig.manager.Nuke(context.Background(), "ghost", false); err != nil {
		t.Fatalf("Nuke of unknown agent = %v, want nil", err)
	}
}

func TestNukeDirtyRefusedWithoutForce(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	h, err := rig.manager.Spawn(ctx, "toast", "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	rig.gw.makeDirty(h.Path, "wip.go", "notes.txt")

	err = rig.manager.Nuke(ctx, "toast", false)
	if !errors.Is(err, ErrDirty) {
		t.Fatalf("Nuke dirty = %v, want ErrDirty", err)
	}
	var dirty *DirtyError
	if !errors.As(err, &dirty) {
		t.Fatalf("error %T does not carry a DirtyError", err)
	}
	if len(dirty.Files) != 2 {
		t.Errorf("DirtyError.Files = %v, want 2 entries", dirty.Files)
	}
	if !rig.gw.has(h.Path) {
		t.Error("refused nuke still removed the worktree")
	}

	if err := rig.manager.Nuke(ctx, "toast", true); err != nil {
		t.Fatalf("forced Nuke: %v", err)
	}
	if rig.gw.has(h.Path) {
		t.Error("forced nuke left the worktree")
	}
}

func TestNukeFailureLeavesRemovingRecord(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.manager.Spawn(ctx, "toast", ""); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	rig.gw.removeErr = transientErr()
	if err := rig.manager.Nuke(ctx, "toast", false); err == nil {
		t.Fatal("expected nuke failure")
	}

	rig.mustState(t, "toast", registry.StateRemoving)
}

func TestNukeOrphanedRefused(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.manager.Spawn(ctx, "toast", ""); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	rec, err := rig.reg.Get("toast")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := rig.reg.Transition(rec, registry.StateOrphaned); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if err := rig.manager.Nuke(ctx, "toast", true); !errors.Is(err, ErrOrphaned) {
		t.Fatalf("Nuke orphaned = %v, want ErrOrphaned", err)
	}
}

func TestStructuralLockSerializes(t *testing.T) {
	lock := NewStructuralLock(t.TempDir())

	release, err := lock.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r2, err := lock.Acquire()
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed after release")
	}
}
