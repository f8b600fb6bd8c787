package worktree

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
)

// fakeWorktree is one entry in the fake gateway's repository.
type fakeWorktree struct {
	branch string
	head   string
	dirty  []string
}

// fakeGateway is an in-memory Gateway for exercising lifecycle logic
// without a real repository. Errors can be injected per method; errs are
// consumed one call at a time so a retry can succeed.
type fakeGateway struct {
	mu        sync.Mutex
	worktrees map[string]*fakeWorktree
	commits   int

	createErr error
	removeErr error
	statusErr error
	commitErr error
	listErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{worktrees: make(map[string]*fakeWorktree)}
}

func (g *fakeGateway) ListWorktrees(ctx context.Context) ([]git.Worktree, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		err := g.listErr
		g.listErr = nil
		return nil, err
	}
	out := make([]git.Worktree, 0, len(g.worktrees))
	for path, wt := range g.worktrees {
		out = append(out, git.Worktree{Path: path, Branch: wt.branch, Head: wt.head})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (g *fakeGateway) CreateWorktree(ctx context.Context, path, branch, baseRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		err := g.createErr
		g.createErr = nil
		return err
	}
	if _, ok := g.worktrees[path]; ok {
		return fmt.Errorf("path already exists: %s", path)
	}
	g.worktrees[path] = &fakeWorktree{branch: branch, head: "base0000"}
	return nil
}

func (g *fakeGateway) RemoveWorktree(ctx context.Context, path string, force bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removeErr != nil {
		err := g.removeErr
		g.removeErr = nil
		return err
	}
	delete(g.worktrees, path)
	return nil
}

func (g *fakeGateway) Status(ctx context.Context, path string) (*git.StatusReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		err := g.statusErr
		g.statusErr = nil
		return nil, err
	}
	wt, ok := g.worktrees[path]
	if !ok {
		return nil, fmt.Errorf("no worktree at %s", path)
	}
	return &git.StatusReport{Clean: len(wt.dirty) == 0, Modified: wt.dirty}, nil
}

func (g *fakeGateway) Commit(ctx context.Context, path, message string, author git.Signature) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.commitErr != nil {
		err := g.commitErr
		g.commitErr = nil
		return "", err
	}
	wt, ok := g.worktrees[path]
	if !ok {
		return "", fmt.Errorf("no worktree at %s", path)
	}
	g.commits++
	wt.head = fmt.Sprintf("commit%02d", g.commits)
	wt.dirty = nil
	return wt.head, nil
}

func (g *fakeGateway) HeadSHA(ctx context.Context, path string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wt, ok := g.worktrees[path]
	if !ok {
		return "", fmt.Errorf("no worktree at %s", path)
	}
	return wt.head, nil
}

// makeDirty marks files as uncommitted in the worktree at path.
func (g *fakeGateway) makeDirty(path string, files ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if wt, ok := g.worktrees[path]; ok {
		wt.dirty = append(wt.dirty, files...)
	}
}

// plantWorktree puts a worktree in the fake without going through the
// create path, simulating external interference.
func (g *fakeGateway) plantWorktree(path, branch, head string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.worktrees[path] = &fakeWorktree{branch: branch, head: head}
}

// has reports whether a worktree exists at path.
func (g *fakeGateway) has(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.worktrees[path]
	return ok
}

// transientErr mimics git lock contention, matching the transient
// classifier.
func transientErr() error {
	return &git.GitError{
		Command: "git",
		Args:    []string{"worktree", "add"},
		Stderr:  "fatal: Unable to create '.git/index.lock': File exists.",
		Err:     errors.New("exit status 128"),
	}
}

// fatalErr mimics a bad ref, which must roll back rather than linger.
func fatalErr() error {
	return &git.GitError{
		Command: "git",
		Args:    []string{"worktree", "add"},
		Stderr:  "fatal: invalid reference: nope",
		Err:     errors.New("exit status 128"),
	}
}

// testRig bundles a full core wired against the fake gateway.
type testRig struct {
	cfg         *config.Config
	reg         *registry.Registry
	gw          *fakeGateway
	manager     *Manager
	inspector   *Inspector
	coordinator *Coordinator
	reconciler  *Reconciler
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	root := filepath.Join(t.TempDir(), "rig")
	cfg := &config.Config{
		RepoRoot:       root,
		OrphanPolicy:   config.OrphanAdopt,
		BranchPrefix:   config.DefaultBranchPrefix,
		WorktreesDir:   config.DefaultWorktreesDir,
		GitTimeout:     config.DefaultGitTimeout,
		StaleThreshold: config.DefaultStaleThreshold,
	}
	reg, err := registry.Open(cfg.RegistryDir())
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	gw := newFakeGateway()
	lock := NewStructuralLock(cfg.LocksDir())
	return &testRig{
		cfg:         cfg,
		reg:         reg,
		gw:          gw,
		manager:     NewManager(cfg, reg, gw, lock),
		inspector:   NewInspector(cfg, reg, gw),
		coordinator: NewCoordinator(cfg, reg, gw),
		reconciler:  NewReconciler(cfg, reg, gw, lock),
	}
}

// ageRecord backdates a record's transition time so staleness checks
// fire, and fixes the reconciler clock.
func (r *testRig) ageRecord(t *testing.T, agentID string, age time.Duration) {
	t.Helper()
	rec, err := r.reg.Get(agentID)
	if err != nil {
		t.Fatalf("Get %s: %v", agentID, err)
	}
	rec.LastTransitionAt = time.Now().Add(-age)
	if err := r.reg.Put(rec); err != nil {
		t.Fatalf("Put %s: %v", agentID, err)
	}
}

// mustState asserts a record's current state.
func (r *testRig) mustState(t *testing.T, agentID string, want registry.State) {
	t.Helper()
	rec, err := r.reg.Get(agentID)
	if err != nil {
		t.Fatalf("Get %s: %v", agentID, err)
	}
	if rec.State != want {
		t.Fatalf("agent %s state = %q, want %q", agentID, rec.State, want)
	}
}
