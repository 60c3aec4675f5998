// Package csf loads story modules written as yaml or toml documents
// ("component story format" files) from a stories directory.
package csf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/store"
	"github.com/mitchellh/mapstructure"
	"github.com/moby/patternmatcher"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPatterns select story modules under the stories directory.
var DefaultPatterns = []string{"**/*.stories.yaml", "**/*.stories.yml", "**/*.stories.toml"}

type moduleDoc struct {
	models.ComponentAnnotations `mapstructure:",squash"`
	Stories                     []models.StoryAnnotations `mapstructure:"stories"`
}

type cachedModule struct {
	hash string
	file *models.CSFFile
}

// Loader reads story modules relative to a root directory. A module whose
// content hash has not changed is returned as the same *CSFFile.
type Loader struct {
	root   string
	mu     sync.Mutex
	cache  map[string]cachedModule
	logger *logrus.Entry
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		root:   dir,
		cache:  make(map[string]cachedModule),
		logger: logging.NewLogger("csf"),
	}
}

// Root returns the directory import paths are resolved against.
func (l *Loader) Root() string {
	return l.root
}

// Load implements store.ModuleLoader.
func (l *Loader) Load(ctx context.Context, importPath string) (*models.CSFFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(importPath, "./")))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load story module %s: %w", importPath, err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.cache[importPath]; ok && cached.hash == hash {
		return cached.file, nil
	}

	file, err := Decode(importPath, data)
	if err != nil {
		return nil, err
	}
	file.Hash = hash
	l.cache[importPath] = cachedModule{hash: hash, file: file}
	l.logger.WithFields(logrus.Fields{
		"import_path": importPath,
		"stories":     len(file.Stories),
	}).Debug("Loaded story module")
	return file, nil
}

// Invalidate forgets the cached module so the next Load re-reads it.
func (l *Loader) Invalidate(importPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, importPath)
}

// Decode parses a story module. The format follows the file extension.
func Decode(importPath string, data []byte) (*models.CSFFile, error) {
	raw := make(map[string]interface{})
	switch ext := filepath.Ext(importPath); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", importPath, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", importPath, err)
		}
	default:
		return nil, fmt.Errorf("unsupported story module format %q", ext)
	}

	var doc moduleDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", importPath, err)
	}
	if doc.Title == "" {
		return nil, fmt.Errorf("%s: missing title", importPath)
	}

	return &models.CSFFile{
		ImportPath: importPath,
		Meta:       doc.ComponentAnnotations,
		Stories:    doc.Stories,
	}, nil
}

// Discover lists the import paths of story modules under the root, sorted.
func (l *Loader) Discover(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid story patterns: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		matched, err := pm.MatchesOrParentMatches(rel)
		if err != nil {
			return err
		}
		if matched {
			paths = append(paths, "./"+filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// BuildIndex loads every discovered module and indexes its stories, for
// projects that do not run a separate index generator.
func (l *Loader) BuildIndex(ctx context.Context, patterns []string) (*index.StoryIndex, error) {
	paths, err := l.Discover(patterns)
	if err != nil {
		return nil, err
	}
	var entries []index.Entry
	for _, p := range paths {
		file, err := l.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		fileEntries, err := store.IndexEntries(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	return index.New(entries...), nil
}
