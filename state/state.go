// Package state persists the preview session between runs so `serve --resume`
// can reopen the last story.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/storyview/pkg/models"
	"gopkg.in/yaml.v3"
)

// Session is the preview state kept in .storyview/state.yml.
type Session struct {
	Selection   *models.Selection      `yaml:"selection,omitempty"`
	QueryParams map[string]string      `yaml:"query_params,omitempty"`
	Globals     models.Globals         `yaml:"globals,omitempty"`
	Args        map[string]models.Args `yaml:"args,omitempty"` // Keyed by story id
	SavedAt     time.Time              `yaml:"saved_at,omitempty"`
}

// Load loads the session from path.
// Returns an empty session if the file doesn't exist.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &s, nil
}

// Save writes the session to path, replacing the previous file atomically.
func Save(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	s.SavedAt = time.Now().UTC()
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.yml")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Specifier turns the saved selection into an initial specifier, carrying the
// story's last args and the last globals. Returns nil when nothing was selected.
func (s *Session) Specifier() *models.SelectionSpecifier {
	if s.Selection == nil || s.Selection.StoryID == "" {
		return nil
	}
	viewMode := s.Selection.ViewMode
	if !viewMode.Valid() {
		viewMode = models.ViewModeStory
	}
	return &models.SelectionSpecifier{
		StorySpecifier: models.StorySpecifier{ID: s.Selection.StoryID},
		ViewMode:       viewMode,
		Args:           s.Args[s.Selection.StoryID],
		Globals:        s.Globals,
	}
}

// SetArgs records the current args of a story.
func (s *Session) SetArgs(storyID string, args models.Args) {
	if s.Args == nil {
		s.Args = make(map[string]models.Args)
	}
	s.Args[storyID] = args.Clone()
}
