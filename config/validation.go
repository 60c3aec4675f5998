package config

import (
	"fmt"
	"time"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Watch.DebounceMs < 0 {
		return errors.ConfigInvalid("watch.debounce_ms cannot be negative").
			WithDetail("debounce_ms", c.Watch.DebounceMs)
	}

	if c.Server.Socket != "" && c.Server.Addr != "" {
		return errors.ConfigInvalid("server.socket and server.addr are mutually exclusive")
	}

	if c.Preview.SlowPrepareWarning != "" {
		d, err := time.ParseDuration(c.Preview.SlowPrepareWarning)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid preview.slow_prepare_warning").
				WithDetail("value", c.Preview.SlowPrepareWarning)
		}
		if d < 0 {
			return errors.ConfigInvalid("preview.slow_prepare_warning cannot be negative")
		}
	}

	if c.Preview.PreloadConcurrency < 0 {
		return errors.ConfigInvalid("preview.preload_concurrency cannot be negative")
	}

	if len(c.Stories) > 0 {
		if _, err := patternmatcher.New(c.Stories); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid stories pattern").
				WithDetail("stories", c.Stories)
		}
	}

	if sel := c.Selection; sel != nil {
		if sel.ViewMode != "" && !models.ViewMode(sel.ViewMode).Valid() {
			return errors.ConfigInvalid(fmt.Sprintf("selection.view_mode must be story or docs, got %q", sel.ViewMode))
		}
		if sel.Story == "" && (len(sel.Args) > 0 || len(sel.Globals) > 0) {
			return errors.ConfigInvalid("selection.args and selection.globals require selection.story")
		}
	}

	for name := range c.Globals {
		if name == "" {
			return errors.ConfigInvalid("global names cannot be empty")
		}
	}

	return nil
}
