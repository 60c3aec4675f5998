package models

import "strings"

// KeyEvent is a keyboard event raised inside the preview host.
type KeyEvent struct {
	AltKey   bool   `json:"altKey"`
	CtrlKey  bool   `json:"ctrlKey"`
	MetaKey  bool   `json:"metaKey"`
	ShiftKey bool   `json:"shiftKey"`
	Key      string `json:"key"`
	Code     string `json:"code"`
	KeyCode  int    `json:"keyCode"`

	// Target describes the focused element; it is never forwarded.
	Target *KeyTarget `json:"target,omitempty"`
}

// KeyTarget is the element that had focus when the key was pressed.
type KeyTarget struct {
	TagName         string `json:"tagName"`
	ContentEditable bool   `json:"contentEditable"`
}

// FocusInInput reports whether the event was typed into an editable element.
func (e KeyEvent) FocusInInput() bool {
	if e.Target == nil {
		return false
	}
	tag := strings.ToLower(e.Target.TagName)
	if strings.Contains(tag, "input") || strings.Contains(tag, "textarea") {
		return true
	}
	return e.Target.ContentEditable
}

// Stripped returns the event without its target, as forwarded to the manager.
func (e KeyEvent) Stripped() KeyEvent {
	e.Target = nil
	return e
}
