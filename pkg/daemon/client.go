// Package daemon provides a client interface for interacting with the storyview daemon.
// It implements a transparent fallback pattern: if the daemon is running, use its HTTP API;
// if not, fall back to an in-process preview.
package daemon

import (
	"context"

	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
)

// Client defines the interface for interacting with the storyview daemon.
// Both RemoteClient (HTTP) and LocalClient (in-process) implement this interface.
type Client interface {
	// GetState returns the daemon's display, preview and source state.
	GetState(ctx context.Context) (*store.State, error)

	// Dispatch sends a command to the preview's event channel.
	// For LocalClient, this returns an error since the preview does not outlive the call.
	Dispatch(ctx context.Context, cmd channel.Command) error

	// Render returns the content of the element in the main area.
	Render(ctx context.Context) (*snapshot.Snapshot, error)

	// Extract returns every story in the catalog keyed by id.
	Extract(ctx context.Context, includeDocsOnly bool) (map[string]*models.Story, error)

	// GetConfig returns the configuration the daemon is running with.
	GetConfig(ctx context.Context) (*RunningConfig, error)

	// StreamState subscribes to real-time state updates from the daemon.
	// For LocalClient, this returns an error since streaming is only available via daemon.
	StreamState(ctx context.Context) (<-chan StreamUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
