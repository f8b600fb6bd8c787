package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// StructuralLock serializes structural operations (spawn, nuke,
// reconcile) on one primary repository. The repository's worktree
// metadata is a single shared structure, so these run one at a time.
//
// Two layers: a channel semaphore serializes goroutines within this
// process in FIFO arrival order, and a flock file lock serializes
// against other wr processes on the same repo. Status and sync never
// take this lock.
type StructuralLock struct {
	slot     chan struct{}
	lockPath string
}

// NewStructuralLock returns a lock whose file half lives in locksDir.
func NewStructuralLock(locksDir string) *StructuralLock {
	return &StructuralLock{
		slot:     make(chan struct{}, 1),
		lockPath: filepath.Join(locksDir, "structure.lock"),
	}
}

// Acquire blocks until the lock is held and returns a release func.
// Goroutines blocked here are served in arrival order.
func (l *StructuralLock) Acquire() (func(), error) {
	l.slot <- struct{}{}

	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0755); err != nil {
		<-l.slot
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}

	fl := flock.New(l.lockPath)
	if err := fl.Lock(); err != nil {
		<-l.slot
		return nil, fmt.Errorf("acquiring structural lock: %w", err)
	}

	return func() {
		_ = fl.Unlock()
		<-l.slot
	}, nil
}
