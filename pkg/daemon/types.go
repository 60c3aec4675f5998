package daemon

import (
	"time"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/pkg/channel"
)

// RunningConfig describes the configuration the daemon was started with.
// This is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	ConfigPath   string        `json:"config_path,omitempty"`
	StoriesDir   string        `json:"stories_dir"`
	Index        string        `json:"index,omitempty"`
	Socket       string        `json:"socket,omitempty"`
	Addr         string        `json:"addr,omitempty"`
	Watch        bool          `json:"watch"`
	Debounce     time.Duration `json:"debounce"`
	StoryStoreV7 bool          `json:"story_store_v7"`
	Version      string        `json:"version"`
	StartedAt    time.Time     `json:"started_at"`
}

// StreamUpdate is one message on /api/stream.
type StreamUpdate struct {
	UpdateType string         `json:"update_type"` // "initial", "display", "event", "preview", "sources", "config_reload"
	Source     string         `json:"source,omitempty"`
	State      *store.State   `json:"state,omitempty"`
	Display    *store.Display `json:"display,omitempty"`
	Event      *channel.Event `json:"event,omitempty"`
	Sources    *store.Sources `json:"sources,omitempty"`
	Preview    interface{}    `json:"preview,omitempty"`
	ConfigFile string         `json:"config_file,omitempty"`
}

// APIError is the JSON body of failed requests.
type APIError struct {
	Code    errors.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message"`
}

// Err converts the body back into an error carrying the same code.
func (e *APIError) Err() error {
	if e.Code == "" {
		return errors.New(errors.ErrCodeInternal, e.Message)
	}
	return errors.New(e.Code, e.Message)
}

// ChannelMessage is what the daemon writes on /api/channel.
type ChannelMessage struct {
	Kind  string         `json:"kind"` // "event" or "error"
	Event *channel.Event `json:"event,omitempty"`
	Error *APIError      `json:"error,omitempty"`
}
