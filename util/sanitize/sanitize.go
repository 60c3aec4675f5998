package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// idPunctuationRegex matches characters that are replaced by a dash in story ids
	idPunctuationRegex = regexp.MustCompile("[ ’–—―′¿'`~!@#$%^&*()_|+\\-=?;:'\",.<>{}\\[\\]\\\\/]")

	// multiDashRegex matches multiple consecutive dashes
	multiDashRegex = regexp.MustCompile(`-+`)
)

// ForStoryID sanitizes a title or story name for use as a story id part.
// Ids contain only lowercase letters, digits and single dashes.
func ForStoryID(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = idPunctuationRegex.ReplaceAllString(s, "-")

	// Collapse multiple dashes
	s = multiDashRegex.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// ToID builds a story id from a component title and a story name.
func ToID(title, name string) (string, error) {
	t := ForStoryID(title)
	n := ForStoryID(name)
	if t == "" {
		return "", fmt.Errorf("invalid title '%s', must include alphanumeric characters", title)
	}
	if n == "" {
		return "", fmt.Errorf("invalid name '%s', must include alphanumeric characters", name)
	}
	return t + "--" + n, nil
}

// StoryNameFromExport turns an export key like "primaryButton" into "Primary Button".
func StoryNameFromExport(key string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
		case unicode.IsDigit(r) && i > 0 && !unicode.IsDigit(runes[i-1]):
			flush()
		}
		current = append(current, r)
	}
	flush()

	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
