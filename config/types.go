package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/paths"
	"github.com/grovetools/storyview/util/pathutil"
	"github.com/mitchellh/mapstructure"
)

// Config represents the storyview.yml configuration.
type Config struct {
	Version string `yaml:"version" toml:"version" mapstructure:"version" jsonschema:"description=Configuration version (e.g. 1.0)"`

	// Index is a story index JSON produced by an external generator. When empty
	// the index is built from the story modules found under StoriesDir.
	Index      string   `yaml:"index,omitempty" toml:"index,omitempty" mapstructure:"index" jsonschema:"description=Path to the story index JSON (built from story modules when empty)"`
	StoriesDir string   `yaml:"stories_dir,omitempty" toml:"stories_dir,omitempty" mapstructure:"stories_dir" jsonschema:"description=Root directory of story modules"`
	Stories    []string `yaml:"stories,omitempty" toml:"stories,omitempty" mapstructure:"stories" jsonschema:"description=Patterns selecting story modules under stories_dir"`

	Watch     WatchConfig      `yaml:"watch,omitempty" toml:"watch,omitempty" mapstructure:"watch" jsonschema:"description=Hot reload of stories, index and config"`
	Server    ServerConfig     `yaml:"server,omitempty" toml:"server,omitempty" mapstructure:"server" jsonschema:"description=Daemon transport"`
	Features  FeaturesConfig   `yaml:"features,omitempty" toml:"features,omitempty" mapstructure:"features" jsonschema:"description=Preview protocol feature switches"`
	Preview   PreviewConfig    `yaml:"preview,omitempty" toml:"preview,omitempty" mapstructure:"preview" jsonschema:"description=Preview orchestrator tuning"`
	Selection *SelectionConfig `yaml:"selection,omitempty" toml:"selection,omitempty" mapstructure:"selection" jsonschema:"description=Story selected when the preview starts"`
	StateFile string           `yaml:"state_file,omitempty" toml:"state_file,omitempty" mapstructure:"state_file" jsonschema:"description=Where the last selection is persisted"`

	// Project annotations applied to every story.
	Parameters  models.Parameters `yaml:"parameters,omitempty" toml:"parameters,omitempty" mapstructure:"parameters" jsonschema:"description=Parameters applied to every story"`
	Args        models.Args       `yaml:"args,omitempty" toml:"args,omitempty" mapstructure:"args" jsonschema:"description=Args applied to every story"`
	ArgTypes    models.ArgTypes   `yaml:"arg_types,omitempty" toml:"arg_types,omitempty" mapstructure:"arg_types" jsonschema:"description=Arg annotations applied to every story"`
	Globals     models.Globals    `yaml:"globals,omitempty" toml:"globals,omitempty" mapstructure:"globals" jsonschema:"description=Initial global values"`
	GlobalTypes models.ArgTypes   `yaml:"global_types,omitempty" toml:"global_types,omitempty" mapstructure:"global_types" jsonschema:"description=Declared globals"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" mapstructure:",remain" jsonschema:"-"`

	// path is the file the configuration was loaded from.
	path string
}

// WatchConfig controls hot reload.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" mapstructure:"enabled" jsonschema:"description=Watch sources for changes (default true)"`
	DebounceMs int   `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" mapstructure:"debounce_ms" jsonschema:"description=Quiet period before a batch of changes is applied"`
}

// ServerConfig selects the daemon's listener. Addr takes a TCP address;
// otherwise the daemon listens on Socket.
type ServerConfig struct {
	Socket string `yaml:"socket,omitempty" toml:"socket,omitempty" mapstructure:"socket" jsonschema:"description=Unix socket path"`
	Addr   string `yaml:"addr,omitempty" toml:"addr,omitempty" mapstructure:"addr" jsonschema:"description=TCP listen address"`
}

// FeaturesConfig mirrors the host feature switches.
type FeaturesConfig struct {
	StoryStoreV7      *bool `yaml:"story_store_v7,omitempty" toml:"story_store_v7,omitempty" mapstructure:"story_store_v7" jsonschema:"description=Announce prepared stories instead of sending the story list (default true)"`
	BreakingChangesV7 bool  `yaml:"breaking_changes_v7,omitempty" toml:"breaking_changes_v7,omitempty" mapstructure:"breaking_changes_v7" jsonschema:"description=Stop copying the story context onto docs contexts"`
}

// PreviewConfig tunes the orchestrator.
type PreviewConfig struct {
	SlowPrepareWarning string `yaml:"slow_prepare_warning,omitempty" toml:"slow_prepare_warning,omitempty" mapstructure:"slow_prepare_warning" jsonschema:"description=Duration after which a slow story load is logged (e.g. 10s)"`
	PreloadConcurrency int    `yaml:"preload_concurrency,omitempty" toml:"preload_concurrency,omitempty" mapstructure:"preload_concurrency" jsonschema:"description=Concurrent loads when preloading stories"`
}

// SelectionConfig is the initial selection specifier.
type SelectionConfig struct {
	Story    string         `yaml:"story" toml:"story" mapstructure:"story" jsonschema:"description=Story id, '*' for the first story, or Title::Name"`
	ViewMode string         `yaml:"view_mode,omitempty" toml:"view_mode,omitempty" mapstructure:"view_mode" jsonschema:"enum=story,enum=docs,description=story or docs"`
	Args     models.Args    `yaml:"args,omitempty" toml:"args,omitempty" mapstructure:"args" jsonschema:"description=Args applied to the selected story"`
	Globals  models.Globals `yaml:"globals,omitempty" toml:"globals,omitempty" mapstructure:"globals" jsonschema:"description=Globals applied on start"`
}

const (
	defaultVersion            = "1.0"
	defaultDebounceMs         = 150
	defaultSlowPrepareWarning = "10s"
	defaultPreloadConcurrency = 8
)

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.StoriesDir == "" {
		c.StoriesDir = "."
	}
	if c.Watch.Enabled == nil {
		enabled := true
		c.Watch.Enabled = &enabled
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaultDebounceMs
	}
	if c.Server.Socket == "" && c.Server.Addr == "" {
		c.Server.Socket = paths.DefaultSocket
	}
	if c.Features.StoryStoreV7 == nil {
		v7 := true
		c.Features.StoryStoreV7 = &v7
	}
	if c.Preview.SlowPrepareWarning == "" {
		c.Preview.SlowPrepareWarning = defaultSlowPrepareWarning
	}
	if c.Preview.PreloadConcurrency == 0 {
		c.Preview.PreloadConcurrency = defaultPreloadConcurrency
	}
	if c.StateFile == "" {
		c.StateFile = paths.DefaultStateFile
	}
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// ResolvePath makes p absolute relative to the configuration directory.
func (c *Config) ResolvePath(p string) string {
	p = pathutil.ExpandHome(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// WatchEnabled reports whether hot reload is on.
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// StoryStoreV7 reports whether the v7 story store protocol is on.
func (c *Config) StoryStoreV7() bool {
	return c.Features.StoryStoreV7 == nil || *c.Features.StoryStoreV7
}

// SlowPrepareWarning parses preview.slow_prepare_warning. Validate rejects
// unparsable values, so the zero duration is only returned for unvalidated configs.
func (c *Config) SlowPrepareWarning() time.Duration {
	d, _ := time.ParseDuration(c.Preview.SlowPrepareWarning)
	return d
}

// ProjectAnnotations returns the annotations applied to every story.
func (c *Config) ProjectAnnotations() *models.ProjectAnnotations {
	return &models.ProjectAnnotations{
		Parameters:  c.Parameters,
		Args:        c.Args,
		ArgTypes:    c.ArgTypes,
		Globals:     c.Globals,
		GlobalTypes: c.GlobalTypes,
	}
}

// SelectionSpecifier returns the initial specifier, or nil when none is configured.
func (c *Config) SelectionSpecifier() *models.SelectionSpecifier {
	if c.Selection == nil || c.Selection.Story == "" {
		return nil
	}
	viewMode := models.ViewMode(c.Selection.ViewMode)
	if viewMode == "" {
		viewMode = models.ViewModeStory
	}
	return &models.SelectionSpecifier{
		StorySpecifier: models.ParseStorySpecifier(c.Selection.Story),
		ViewMode:       viewMode,
		Args:           c.Selection.Args,
		Globals:        c.Selection.Globals,
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded storyview.yml into the provided target struct. The target must be a
// pointer. A missing key leaves the target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
