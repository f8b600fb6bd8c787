package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/warrig/internal/config"
	"github.com/steveyegge/warrig/internal/git"
	"github.com/steveyegge/warrig/internal/registry"
	"github.com/steveyegge/warrig/internal/worktree"
)

// core bundles the constructed components for one repository.
type core struct {
	cfg         *config.Config
	reg         *registry.Registry
	gw          *git.Repo
	manager     *worktree.Manager
	inspector   *worktree.Inspector
	coordinator *worktree.Coordinator
	reconciler  *worktree.Reconciler
}

// openCore resolves the primary repository and wires up the lifecycle
// components around it.
func openCore(ctx context.Context) (*core, error) {
	root := repoFlag
	if root == "" {
		var err error
		root, err = findRepoRoot()
		if err != nil {
			return nil, err
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, cfg.GitTimeout)
	defer cancel()
	gw, err := git.Open(gctx, root)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(cfg.RegistryDir())
	if err != nil {
		return nil, err
	}

	lock := worktree.NewStructuralLock(cfg.LocksDir())
	return &core{
		cfg:         cfg,
		reg:         reg,
		gw:          gw,
		manager:     worktree.NewManager(cfg, reg, gw, lock),
		inspector:   worktree.NewInspector(cfg, reg, gw),
		coordinator: worktree.NewCoordinator(cfg, reg, gw),
		reconciler:  worktree.NewReconciler(cfg, reg, gw, lock),
	}, nil
}

// findRepoRoot walks up from the working directory to the first
// directory containing .git.
func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no git repository found above %s (use --repo)", dir)
		}
		dir = parent
	}
}

// promptYesNo asks for confirmation on stdin. Defaults to no.
func promptYesNo(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
