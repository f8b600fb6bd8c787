package worktree

import "github.com/steveyegge/warrig/internal/registry"

// Handle identifies one agent's worktree for status and sync calls.
// Handles carry no capabilities of their own; all access goes through
// the gateway.
type Handle struct {
	// AgentID is the owning agent.
	AgentID string `json:"agent_id"`

	// Path is the worktree's filesystem location.
	Path string `json:"path"`

	// Branch is the branch checked out in the worktree.
	Branch string `json:"branch"`
}

// handleFor builds a Handle from a registry record.
func handleFor(rec *registry.Record) *Handle {
	return &Handle{
		AgentID: rec.AgentID,
		Path:    rec.Path,
		Branch:  rec.Branch,
	}
}
