// Package view shows the preview's output by recording display state into
// the daemon store, where the HTTP API and CLI pick it up.
package view

import (
	"sync"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/pkg/models"
)

const (
	storyRootName = "root"
	docsRootName  = "docs-root"
)

// StateView is a preview.ViewAdapter backed by the daemon store. Stories and
// docs pages mount into two long-lived snapshot elements.
type StateView struct {
	store *store.Store

	storyRoot *snapshot.Element
	docsRoot  *snapshot.Element

	mu      sync.Mutex
	main    *snapshot.Element
	storyID string
}

// New creates a StateView writing into st.
func New(st *store.Store) *StateView {
	return &StateView{
		store:     st,
		storyRoot: snapshot.NewElement(storyRootName),
		docsRoot:  snapshot.NewElement(docsRootName),
	}
}

// MainElement returns the element last prepared for the main area, or nil.
func (v *StateView) MainElement() *snapshot.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.main
}

func (v *StateView) show(d store.Display) {
	v.mu.Lock()
	if d.Mode == store.DisplayMain || d.Mode == store.DisplayStoryDuringRender {
		if v.main != nil {
			d.Element = v.main.Name()
		}
		d.StoryID = v.storyID
	}
	v.mu.Unlock()
	v.store.ApplyUpdate(store.Update{Type: store.UpdateDisplay, Source: "view", Payload: d})
}

func (v *StateView) ShowPreparingStory(immediate bool) {
	v.show(store.Display{Mode: store.DisplayPreparingStory, Immediate: immediate})
}

func (v *StateView) ShowPreparingDocs() {
	v.show(store.Display{Mode: store.DisplayPreparingDocs})
}

func (v *StateView) ShowMain() {
	v.show(store.Display{Mode: store.DisplayMain})
}

func (v *StateView) ShowStoryDuringRender() {
	v.show(store.Display{Mode: store.DisplayStoryDuringRender})
}

// ShowErrorDisplay shows err. User story errors show their title and
// description the way the host would lay them out.
func (v *StateView) ShowErrorDisplay(err error) {
	msg := err.Error()
	if pe, ok := errors.As(err); ok && pe.Code == errors.ErrCodeUserStoryError {
		msg = pe.Message
		if desc := pe.DetailString("description"); desc != "" {
			msg += "\n\n" + desc
		}
	}
	v.show(store.Display{Mode: store.DisplayError, Error: msg})
}

func (v *StateView) ShowNoPreview() {
	v.show(store.Display{Mode: store.DisplayNoPreview})
}

func (v *StateView) PrepareForStory(story *models.Story) render.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.main = v.storyRoot
	v.storyID = story.ID
	return v.storyRoot
}

func (v *StateView) PrepareForDocs() render.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.main = v.docsRoot
	v.storyID = ""
	return v.docsRoot
}
