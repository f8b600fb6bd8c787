// Package cli provides CLI configuration utilities.
package cli

import (
	"os"
	"sync"
)

var (
	name     string
	nameOnce sync.Once
)

// Name returns the War Rig CLI command name.
// Defaults to "wr", but can be overridden with WR_COMMAND env var.
// This allows coexistence with other tools that claim "wr".
func Name() string {
	nameOnce.Do(func() {
		name = os.Getenv("WR_COMMAND")
		if name == "" {
			name = "wr"
		}
	})
	return name
}
