package csf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buttonYAML = `title: Example/Button
component: button
parameters:
  layout: centered
args:
  size: medium
arg_types:
  size:
    options: [small, medium, large]
stories:
  - export: Primary
    args:
      primary: true
      label: Button
  - export: Secondary
    name: The Secondary
`

const headerTOML = `title = "Example/Header"

[[stories]]
export = "LoggedIn"

[stories.args]
user = "Jane"
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDecodeYAML(t *testing.T) {
	file, err := Decode("./button.stories.yaml", []byte(buttonYAML))
	require.NoError(t, err)

	assert.Equal(t, "Example/Button", file.Meta.Title)
	assert.Equal(t, "centered", file.Meta.Parameters["layout"])
	assert.Equal(t, []interface{}{"small", "medium", "large"}, file.Meta.ArgTypes["size"].Options)
	require.Len(t, file.Stories, 2)
	assert.Equal(t, "Primary", file.Stories[0].ExportName)
	assert.Equal(t, true, file.Stories[0].Args["primary"])
	assert.Equal(t, "The Secondary", file.Stories[1].Name)
}

func TestDecodeTOML(t *testing.T) {
	file, err := Decode("./header.stories.toml", []byte(headerTOML))
	require.NoError(t, err)
	assert.Equal(t, "Example/Header", file.Meta.Title)
	require.Len(t, file.Stories, 1)
	assert.Equal(t, "Jane", file.Stories[0].Args["user"])
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode("./x.stories.json", []byte("{}"))
	assert.Error(t, err)

	_, err = Decode("./x.stories.yaml", []byte("component: x\n"))
	assert.ErrorContains(t, err, "missing title")
}

func TestLoaderReusesUnchangedModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "button.stories.yaml", buttonYAML)
	l := NewLoader(dir)
	ctx := context.Background()

	first, err := l.Load(ctx, "./button.stories.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Hash)

	second, err := l.Load(ctx, "./button.stories.yaml")
	require.NoError(t, err)
	assert.Same(t, first, second)

	writeFile(t, dir, "button.stories.yaml", buttonYAML+"  - export: Large\n")
	third, err := l.Load(ctx, "./button.stories.yaml")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Len(t, third.Stories, 3)

	l.Invalidate("./button.stories.yaml")
	fourth, err := l.Load(ctx, "./button.stories.yaml")
	require.NoError(t, err)
	assert.NotSame(t, third, fourth)
}

func TestBuildIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "button.stories.yaml", buttonYAML)
	writeFile(t, dir, "nested/header.stories.toml", headerTOML)
	writeFile(t, dir, "notes.md", "# not a story")
	writeFile(t, dir, ".hidden/skip.stories.yaml", buttonYAML)

	l := NewLoader(dir)
	paths, err := l.Discover(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"./button.stories.yaml", "./nested/header.stories.toml"}, paths)

	idx, err := l.BuildIndex(context.Background(), nil)
	require.NoError(t, err)

	var ids []string
	for _, e := range idx.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{
		"example-button--primary",
		"example-button--secondary",
		"example-header--logged-in",
	}, ids)

	entry, _ := idx.Entry("example-button--secondary")
	assert.Equal(t, "The Secondary", entry.Name)
}
