package selection

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/models"
)

var (
	pathRegex      = regexp.MustCompile(`^/(story|docs)/(.+)$`)
	safeValueRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]*$`)
	safeKeyRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	pairSeparator  = ";"
	valueSeparator = ":"
)

// SpecifierFromQuery builds the initial specifier from preview URL parameters:
// path=/story/<id> or id=<id>, plus viewMode, args and globals.
// It returns nil when the query names no story.
func SpecifierFromQuery(values url.Values) *models.SelectionSpecifier {
	viewMode := models.ViewMode(values.Get("viewMode"))
	if !viewMode.Valid() {
		viewMode = models.ViewModeStory
	}

	storyID := values.Get("id")
	if m := pathRegex.FindStringSubmatch(values.Get("path")); m != nil {
		viewMode = models.ViewMode(m[1])
		storyID = m[2]
	}

	var args models.Args
	if raw := values.Get("args"); raw != "" {
		args = models.Args(ParseArgsParam(raw))
	}
	var globals models.Globals
	if raw := values.Get("globals"); raw != "" {
		globals = models.Globals(ParseArgsParam(raw))
	}

	if storyID == "" {
		return nil
	}
	return &models.SelectionSpecifier{
		StorySpecifier: models.ParseStorySpecifier(storyID),
		ViewMode:       viewMode,
		Args:           args,
		Globals:        globals,
	}
}

// ParseArgsParam decodes "key:value;other:!true" into a map. Unsafe keys or
// values are dropped with a warning. "!true", "!false" and "!null" decode to
// their literal values; "!undefined" removes the key.
func ParseArgsParam(raw string) map[string]interface{} {
	logger := logging.NewLogger("selection")
	out := make(map[string]interface{})

	for _, pair := range strings.Split(raw, pairSeparator) {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, valueSeparator)
		if !ok || !safeKeyRegex.MatchString(key) {
			logger.WithField("pair", pair).Warn("Omitted potentially unsafe URL args")
			continue
		}
		switch value {
		case "!true":
			out[key] = true
		case "!false":
			out[key] = false
		case "!null":
			out[key] = nil
		case "!undefined":
		default:
			if !safeValueRegex.MatchString(value) {
				logger.WithField("key", key).Warn("Omitted potentially unsafe URL args")
				continue
			}
			out[key] = value
		}
	}
	return out
}
