// Package snapshot is the default render adapter. Instead of drawing into a
// framework, it writes a JSON document describing what would be shown into an
// in-memory element, which the daemon serves over its API.
package snapshot

import (
	"encoding/json"
	"sort"
	"sync"
)

// Element is a mount point. Its content is replaced on every render and
// cleared when the render is disposed.
type Element struct {
	name string

	mu       sync.RWMutex
	content  json.RawMessage
	renders  int
	children map[string]*Element
}

// NewElement creates an empty element.
func NewElement(name string) *Element {
	return &Element{name: name}
}

// Name returns the element's name.
func (e *Element) Name() string { return e.name }

// Content returns the last document written, or nil when nothing is mounted.
func (e *Element) Content() json.RawMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.content
}

// Renders counts renders since the element was last mounted from scratch.
func (e *Element) Renders() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renders
}

// Mounted reports whether the element currently holds a document.
func (e *Element) Mounted() bool {
	return e.Content() != nil
}

// Children returns the embedded elements in name order.
func (e *Element) Children() []*Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Element, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Snapshot is the serialisable tree under an element.
type Snapshot struct {
	Name     string          `json:"name"`
	Content  json.RawMessage `json:"content,omitempty"`
	Renders  int             `json:"renders"`
	Children []Snapshot      `json:"children,omitempty"`
}

// Snapshot captures the element and its children.
func (e *Element) Snapshot() Snapshot {
	s := Snapshot{Name: e.name, Content: e.Content(), Renders: e.Renders()}
	for _, c := range e.Children() {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}

func (e *Element) write(doc interface{}, remount bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if remount {
		e.renders = 0
	}
	e.renders++
	e.content = data
	return nil
}

func (e *Element) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = nil
	e.renders = 0
}

func (e *Element) child(name string) (*Element, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.children == nil {
		e.children = make(map[string]*Element)
	}
	if c, ok := e.children[name]; ok {
		return c, false
	}
	c := NewElement(e.name + "/" + name)
	e.children[name] = c
	return c, true
}

func (e *Element) dropChildren() map[string]*Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	children := e.children
	e.children = nil
	return children
}
