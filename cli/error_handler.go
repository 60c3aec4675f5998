package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/storyview/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	pe, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(out, "❌ Configuration not found: %s\n", pe.DetailString("path"))

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(out, "❌ %v\n", err)
		fmt.Fprintf(out, "Run 'storyview config schema' to see the accepted fields.\n")

	case errors.ErrCodeIndexInvalid:
		fmt.Fprintf(out, "❌ The story index at %s does not match the expected format\n", pe.DetailString("path"))
		if pe.Cause != nil {
			fmt.Fprintf(out, "%v\n", pe.Cause)
		}

	case errors.ErrCodeStoryNotFound:
		fmt.Fprintf(out, "❌ %s\n", pe.Message)
		fmt.Fprintf(out, "Run 'storyview extract' to list the stories in your catalog.\n")

	case errors.ErrCodeNoStories:
		fmt.Fprintf(out, "❌ %s\n", pe.Message)
		fmt.Fprintf(out, "Check stories_dir and stories in storyview.yml.\n")

	case errors.ErrCodeUserStoryError:
		fmt.Fprintf(out, "❌ %s\n", pe.Message)
		if desc := pe.DetailString("description"); desc != "" {
			fmt.Fprintf(out, "%s\n", desc)
		}

	case errors.ErrCodeDaemonUnavailable:
		fmt.Fprintf(out, "❌ %s\n", pe.Message)

	default:
		// Generic error handling
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}

	// If verbose mode, show full error details
	if h.Verbose && pe != nil {
		fmt.Fprintf(out, "\nError details:\n%s\n", pe.ToJSON())
	}
	return err
}
