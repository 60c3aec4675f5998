// Package collector holds the daemon's background workers. Each one watches
// a single source (story files, the event channel, the state file) and turns
// what it sees into store updates. The engine runs each on its own goroutine.
package collector

import (
	"context"

	"github.com/grovetools/storyview/internal/daemon/store"
)

// Collector is one background worker.
type Collector interface {
	// Name identifies the collector in logs.
	Name() string

	// Run blocks until ctx is done, sending updates for the engine to apply.
	// st may be read for context but is never written directly.
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}
