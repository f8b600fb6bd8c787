// Package registry provides the durable record of agent worktree ownership.
package registry

import "time"

// State represents the lifecycle state of a worktree record.
// States only move forward; the reconciler alone may reset a record to
// StateOrphaned and is the only component allowed to resolve it.
type State string

const (
	// StateSpawning means intent to create is recorded but the gateway
	// create has not been confirmed.
	StateSpawning State = "spawning"

	// StateActive means the worktree exists and the agent owns it.
	StateActive State = "active"

	// StateDirty means the last inspection found uncommitted changes.
	StateDirty State = "dirty"

	// StateCommitting means a commit is in flight.
	StateCommitting State = "committing"

	// StateRemoving means intent to destroy is recorded but the gateway
	// remove has not been confirmed.
	StateRemoving State = "removing"

	// StateRemoved means the worktree is gone; the record is purged
	// immediately after entering this state.
	StateRemoved State = "removed"

	// StateOrphaned means registry and gateway state disagreed after an
	// unclean restart. Only the reconciler moves a record out of here.
	StateOrphaned State = "orphaned"
)

// Transitional reports whether the state records an operation that was
// in flight. Records stuck here past the staleness threshold are the
// reconciler's to repair.
func (s State) Transitional() bool {
	return s == StateSpawning || s == StateRemoving || s == StateCommitting
}

// Record is the durable unit of the registry: one per agent worktree.
type Record struct {
	// ID is a unique identifier for this record, for auditing.
	ID string `json:"id"`

	// AgentID is the opaque identifier supplied by the caller. At most
	// one non-removed record exists per agent at any time.
	AgentID string `json:"agent_id"`

	// Path is the worktree's filesystem location, unique across records.
	Path string `json:"path"`

	// Branch is the branch checked out in the worktree, derived
	// deterministically from AgentID, unique across records.
	Branch string `json:"branch"`

	// BaseRef is the ref the worktree was branched from.
	BaseRef string `json:"base_ref"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// HeadSHA is the last observed commit at this worktree.
	HeadSHA string `json:"head_sha,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// LastTransitionAt is when State last changed, for staleness detection.
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// Stale reports whether a transitional record has sat unchanged longer
// than the given threshold.
func (r *Record) Stale(threshold time.Duration, now time.Time) bool {
	return r.State.Transitional() && now.Sub(r.LastTransitionAt) > threshold
}
