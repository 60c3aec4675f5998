package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestPreviewError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeStoryNotFound, "story not found")
	if err.Code != ErrCodeStoryNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeStoryNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeStoryPreparation, "prepare failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeStoryPreparation) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeStoryNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Codes are found through fmt wrapping too
	outer := fmt.Errorf("outer: %w", wrapped)
	if GetCode(outer) != ErrCodeStoryPreparation {
		t.Errorf("expected code through wrapping, got %q", GetCode(outer))
	}

	detailed := err.WithDetail("storyId", "a--1").WithDetail("attempt", 2)
	if detailed.Details["storyId"] != "a--1" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := StoryNotFound("B")
	if err.Code != ErrCodeStoryNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeStoryNotFound, err.Code)
	}
	if !strings.Contains(err.Message, "Couldn't find story matching 'B'") {
		t.Errorf("unexpected message: %s", err.Message)
	}

	err = NoStories()
	if !strings.Contains(err.Message, "Couldn't find any stories") {
		t.Errorf("unexpected message: %s", err.Message)
	}

	err = UserStoryError("Expecting a component", "The story returned nothing")
	if err.DetailString("description") != "The story returned nothing" {
		t.Error("UserStoryError should include description detail")
	}
}

func TestIsIgnored(t *testing.T) {
	if !IsIgnored(RenderException("a--1", ErrIgnoredException)) {
		t.Error("wrapped sentinel should be ignored")
	}
	if IsIgnored(RenderException("a--1", fmt.Errorf("boom"))) {
		t.Error("plain error should not be ignored")
	}
}
