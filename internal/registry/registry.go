package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/warrig/internal/util"
)

// Common errors
var (
	ErrNotFound = errors.New("worktree record not found")

	// ErrCorrupt means records violate a uniqueness invariant. This must
	// never occur under correct operation; it is surfaced loudly and
	// never auto-repaired.
	ErrCorrupt = errors.New("registry corruption")
)

// Registry is a directory-backed store of worktree records: one JSON
// file per agent, written atomically so a crash never leaves a record
// half-written. Structural mutation happens only under the lifecycle
// manager's structural lock; the registry itself does no locking.
type Registry struct {
	dir string
}

// Open returns a Registry rooted at dir, creating it if needed.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating registry dir: %w", err)
	}
	return &Registry{dir: dir}, nil
}

// recordPath returns the file backing one agent's record.
func (r *Registry) recordPath(agentID string) string {
	return filepath.Join(r.dir, agentID+".json")
}

// NewRecord builds a fresh record in StateSpawning for an agent.
func NewRecord(agentID, path, branch, baseRef string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:               uuid.New().String(),
		AgentID:          agentID,
		Path:             path,
		Branch:           branch,
		BaseRef:          baseRef,
		State:            StateSpawning,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
}

// Get returns the record for an agent, or ErrNotFound.
func (r *Registry) Get(agentID string) (*Record, error) {
	data, err := os.ReadFile(r.recordPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
		}
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record for %s: %w", agentID, err)
	}
	return &rec, nil
}

// Put persists a record atomically.
func (r *Registry) Put(rec *Record) error {
	return util.EnsureDirAndWriteJSON(r.recordPath(rec.AgentID), rec)
}

// Transition updates the record's state and transition timestamp, then
// persists it. The caller is responsible for ordering: intent must be
// durable before the matching gateway side effect runs.
func (r *Registry) Transition(rec *Record, state State) error {
	rec.State = state
	rec.LastTransitionAt = time.Now().UTC()
	return r.Put(rec)
}

// Delete purges an agent's record. Deleting a missing record is a no-op.
func (r *Registry) Delete(agentID string) error {
	err := os.Remove(r.recordPath(agentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// List returns all records, sorted by agent id for stable output.
func (r *Registry) List() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading registry dir: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := r.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// CheckIntegrity verifies the uniqueness invariants across all records:
// no two non-removed records may share a path or a branch. On violation
// it returns ErrCorrupt naming the offending agents; callers must refuse
// structural operations on those agents rather than repair.
func (r *Registry) CheckIntegrity() error {
	records, err := r.List()
	if err != nil {
		return err
	}

	byPath := make(map[string]string)
	byBranch := make(map[string]string)
	for _, rec := range records {
		if rec.State == StateRemoved {
			continue
		}
		if other, ok := byPath[rec.Path]; ok {
			return fmt.Errorf("%w: agents %s and %s both claim path %s",
				ErrCorrupt, other, rec.AgentID, rec.Path)
		}
		if other, ok := byBranch[rec.Branch]; ok {
			return fmt.Errorf("%w: agents %s and %s both claim branch %s",
				ErrCorrupt, other, rec.AgentID, rec.Branch)
		}
		byPath[rec.Path] = rec.AgentID
		byBranch[rec.Branch] = rec.AgentID
	}

	return nil
}
