package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ButtonModule is a story module with two stories, Primary and Secondary,
// each carrying a label arg. Its story ids are example-button--primary and
// example-button--secondary.
const ButtonModule = `title: Example/Button
component: button
stories:
  - export: Primary
    args:
      label: Primary
  - export: Secondary
    args:
      label: Secondary
`

// StaticConfig disables file watching and selects the first story on start.
const StaticConfig = `watch:
  enabled: false
selection:
  story: "*"
`

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteProject creates a temporary project with a storyview.yml holding
// configYAML and the given story modules keyed by path relative to the
// project root. It returns the project root.
func WriteProject(t *testing.T, configYAML string, modules map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	WriteFile(t, dir, "storyview.yml", configYAML)
	for rel, content := range modules {
		WriteFile(t, dir, rel, content)
	}
	return dir
}

// ButtonProject is WriteProject with ButtonModule at the project root.
func ButtonProject(t *testing.T, configYAML string) string {
	t.Helper()
	return WriteProject(t, configYAML, map[string]string{"button.stories.yaml": ButtonModule})
}

// RandomString generates a random hex string of the given length
func RandomString(n int) string {
	bytes := make([]byte, n/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:n]
}
