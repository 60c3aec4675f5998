package errors

import (
	"fmt"
	"strings"
)

// StoryNotFound creates the loading exception for a specifier that matched nothing.
func StoryNotFound(specifier string) *PreviewError {
	msg := strings.Join([]string{
		fmt.Sprintf("Couldn't find story matching '%s'.", specifier),
		"- Are you sure a story with that id exists?",
		"- Please check the stories field of your storyview config.",
		"- Also check the preview logs for error messages.",
	}, "\n")
	return New(ErrCodeStoryNotFound, msg).WithDetail("specifier", specifier)
}

// NoStories creates the loading exception for a wildcard against an empty index.
func NoStories() *PreviewError {
	msg := strings.Join([]string{
		"Couldn't find any stories in your catalog.",
		"- Please check the stories field of your storyview config.",
		"- Also check the preview logs for error messages.",
	}, "\n")
	return New(ErrCodeNoStories, msg).WithDetail("specifier", "*")
}

// StoryPreparation wraps a failure to load or process a story module.
func StoryPreparation(storyID string, err error) *PreviewError {
	return Wrap(err, ErrCodeStoryPreparation, fmt.Sprintf("failed to prepare story '%s'", storyID)).
		WithDetail("storyId", storyID)
}

// RenderException wraps an error thrown by a story while rendering.
func RenderException(storyID string, err error) *PreviewError {
	return Wrap(err, ErrCodeRenderException, fmt.Sprintf("error rendering story '%s'", storyID)).
		WithDetail("storyId", storyID)
}

// UserStoryError signals an application-level problem the story author must fix,
// such as a story function returning the wrong thing.
func UserStoryError(title, description string) *PreviewError {
	return New(ErrCodeUserStoryError, title).
		WithDetail("title", title).
		WithDetail("description", description)
}

// NoSelection is returned when rendering is requested before any selection was made.
func NoSelection() *PreviewError {
	return New(ErrCodeNoSelection, "cannot render story as no selection was made")
}

// InvalidTransition reports a render phase change the state machine does not allow.
func InvalidTransition(from, to string) *PreviewError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("invalid render transition: %s -> %s", from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *PreviewError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *PreviewError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// IndexInvalid creates an invalid story index error
func IndexInvalid(path string, err error) *PreviewError {
	return Wrap(err, ErrCodeIndexInvalid, fmt.Sprintf("invalid story index: %s", path)).
		WithDetail("path", path)
}

// DaemonUnavailable creates an error for operations that need a running daemon
func DaemonUnavailable(operation string) *PreviewError {
	return New(ErrCodeDaemonUnavailable, fmt.Sprintf("%s requires a running daemon; start it with 'storyview serve'", operation)).
		WithDetail("operation", operation)
}
