package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading home directory character '~'.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Expand expands the home directory and environment variables in a path.
// Relative results are resolved against base, or left relative when base is empty.
func Expand(path, base string) string {
	path = os.ExpandEnv(ExpandHome(path))
	if base == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
