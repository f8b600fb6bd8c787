// Package config provides configuration loading for War Rig.
//
// Configuration lives in warrig.toml at the primary repository root. All
// fields are optional; defaults are chosen so a repo with no config file
// behaves sensibly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the settings file looked up at the repo root.
const ConfigFileName = "warrig.toml"

// OrphanPolicy controls what the reconciler does with worktrees it finds
// in the managed branch namespace that have no registry record.
type OrphanPolicy string

const (
	// OrphanAdopt creates a registry record and assumes ownership.
	// This is the default: it never destroys data.
	OrphanAdopt OrphanPolicy = "adopt"

	// OrphanRemove treats the worktree as foreign or stale and removes it.
	OrphanRemove OrphanPolicy = "remove"
)

// Valid reports whether the policy is a known value.
func (p OrphanPolicy) Valid() bool {
	return p == OrphanAdopt || p == OrphanRemove
}

// duration wraps time.Duration so TOML files can say git_timeout = "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// fileConfig is the on-disk shape of warrig.toml.
type fileConfig struct {
	// OrphanPolicy is "adopt" or "remove".
	OrphanPolicy string `toml:"orphan_policy"`

	// BranchPrefix is the namespace prefix for agent branches.
	BranchPrefix string `toml:"branch_prefix"`

	// WorktreesDir is the directory (relative to the repo root's parent)
	// where agent worktrees are created.
	WorktreesDir string `toml:"worktrees_dir"`

	// GitTimeout bounds every git subprocess invocation, e.g. "30s".
	GitTimeout duration `toml:"git_timeout"`

	// StaleThreshold is how long a record may sit in a transitional state
	// (spawning/removing/committing) before the reconciler intervenes.
	StaleThreshold duration `toml:"stale_threshold"`
}

// Config holds resolved War Rig settings for one primary repository.
type Config struct {
	// RepoRoot is the absolute path to the primary repository.
	RepoRoot string

	// OrphanPolicy is the reconciler's adopt-or-remove choice.
	OrphanPolicy OrphanPolicy

	// BranchPrefix namespaces agent branches (e.g. "polecat/").
	BranchPrefix string

	// WorktreesDir is where agent worktrees live.
	WorktreesDir string

	// GitTimeout bounds each git subprocess call.
	GitTimeout time.Duration

	// StaleThreshold ages out stuck transitional records.
	StaleThreshold time.Duration
}

// Defaults. The branch prefix follows the polecat convention so worktrees
// created by this tool are recognizable in branch listings.
const (
	DefaultBranchPrefix   = "polecat/"
	DefaultWorktreesDir   = "polecats"
	DefaultGitTimeout     = 30 * time.Second
	DefaultStaleThreshold = 10 * time.Minute
)

// Load reads warrig.toml from the repo root, applying defaults for any
// missing fields. A missing file is not an error. WARRIG_ORPHAN_POLICY
// overrides the file value, mirroring how other settings respect env vars.
func Load(repoRoot string) (*Config, error) {
	cfg := &Config{
		RepoRoot:       repoRoot,
		OrphanPolicy:   OrphanAdopt,
		BranchPrefix:   DefaultBranchPrefix,
		WorktreesDir:   DefaultWorktreesDir,
		GitTimeout:     DefaultGitTimeout,
		StaleThreshold: DefaultStaleThreshold,
	}

	path := filepath.Join(repoRoot, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}
	if err == nil {
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
		}
		if fc.OrphanPolicy != "" {
			cfg.OrphanPolicy = OrphanPolicy(fc.OrphanPolicy)
		}
		if fc.BranchPrefix != "" {
			cfg.BranchPrefix = fc.BranchPrefix
		}
		if fc.WorktreesDir != "" {
			cfg.WorktreesDir = fc.WorktreesDir
		}
		if fc.GitTimeout.Duration > 0 {
			cfg.GitTimeout = fc.GitTimeout.Duration
		}
		if fc.StaleThreshold.Duration > 0 {
			cfg.StaleThreshold = fc.StaleThreshold.Duration
		}
	}

	if env := os.Getenv("WARRIG_ORPHAN_POLICY"); env != "" {
		cfg.OrphanPolicy = OrphanPolicy(env)
	}

	if !cfg.OrphanPolicy.Valid() {
		return nil, fmt.Errorf("invalid orphan_policy %q (want %q or %q)",
			cfg.OrphanPolicy, OrphanAdopt, OrphanRemove)
	}

	return cfg, nil
}

// RuntimeDir returns the directory for per-repo runtime state (registry,
// locks). It sits inside the repo root but is expected to be gitignored.
func (c *Config) RuntimeDir() string {
	return filepath.Join(c.RepoRoot, ".runtime")
}

// RegistryDir returns the directory holding worktree records.
func (c *Config) RegistryDir() string {
	return filepath.Join(c.RuntimeDir(), "worktrees")
}

// LocksDir returns the directory holding file locks.
func (c *Config) LocksDir() string {
	return filepath.Join(c.RuntimeDir(), "locks")
}

// WorktreesRoot returns the directory under which agent worktrees are
// created. Worktrees live beside the repo, not inside it, so a worktree
// checkout never nests inside the primary working tree.
func (c *Config) WorktreesRoot() string {
	return filepath.Join(filepath.Dir(c.RepoRoot), c.WorktreesDir)
}

// WorktreePath returns the deterministic worktree path for an agent.
func (c *Config) WorktreePath(agentID string) string {
	return filepath.Join(c.WorktreesRoot(), agentID)
}

// BranchName returns the deterministic branch name for an agent.
func (c *Config) BranchName(agentID string) string {
	return c.BranchPrefix + agentID
}
