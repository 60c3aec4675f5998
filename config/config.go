package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/storyview/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are searched in order in every directory.
var configNames = []string{
	"storyview.yml",
	"storyview.yaml",
	"storyview.toml",
	".storyview.yml",
	".storyview.yaml",
}

// overrideNames are merged over the project config when present next to it.
var overrideNames = []string{
	"storyview.override.yml",
	"storyview.override.yaml",
	"storyview.override.toml",
}

// Load reads, validates and applies defaults to one configuration file.
func Load(path string) (*Config, error) {
	cfg, err := loadRaw(path)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

// LoadDefault finds and loads the configuration for the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger finds the project config by walking up from startDir,
// merges any override files found next to it, then applies defaults and
// validates the result.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	projectPath, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", projectPath).Debug("Loading project configuration")

	cfg, err := loadRaw(projectPath)
	if err != nil {
		return nil, err
	}

	projectDir := filepath.Dir(projectPath)
	for _, name := range overrideNames {
		overridePath := filepath.Join(projectDir, name)
		if _, err := os.Stat(overridePath); err != nil {
			continue
		}
		logger.WithField("path", overridePath).Debug("Loading local override configuration")
		override, err := loadRaw(overridePath)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse override file, skipping")
			continue
		}
		cfg = mergeConfigs(cfg, override)
	}

	final, err := finalize(cfg)
	if err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(final); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}
	return final, nil
}

// LoadFromBytes parses configuration from byte array. format is "yaml" or "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	cfg, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

func loadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := decode(data, formatFor(path))
	if err != nil {
		if pe, ok := errors.As(err); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.path = abs
	return cfg, nil
}

func finalize(cfg *Config) (*Config, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatFor(path string) string {
	if strings.HasSuffix(path, ".toml") {
		return "toml"
	}
	return "yaml"
}

// decode parses either format into a generic map, then into Config, so both
// formats share one set of field names.
func decode(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	raw := make(map[string]interface{})
	var err error
	switch format {
	case "toml":
		err = toml.Unmarshal(expanded, &raw)
	case "yaml", "":
		err = yaml.Unmarshal(expanded, &raw)
	default:
		return nil, errors.ConfigInvalid("unsupported config format " + format)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse "+strings.ToUpper(format)+" configuration")
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}
	return &cfg, nil
}

// FindConfigFile searches from startDir up to the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// mergeConfigs merges override configuration into base. Scalars replace,
// maps merge key by key.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Index != "" {
		result.Index = override.Index
	}
	if override.StoriesDir != "" {
		result.StoriesDir = override.StoriesDir
	}
	if len(override.Stories) > 0 {
		result.Stories = override.Stories
	}
	if override.Watch.Enabled != nil {
		result.Watch.Enabled = override.Watch.Enabled
	}
	if override.Watch.DebounceMs != 0 {
		result.Watch.DebounceMs = override.Watch.DebounceMs
	}
	if override.Server.Socket != "" || override.Server.Addr != "" {
		result.Server = override.Server
	}
	if override.Features.StoryStoreV7 != nil {
		result.Features.StoryStoreV7 = override.Features.StoryStoreV7
	}
	if override.Features.BreakingChangesV7 {
		result.Features.BreakingChangesV7 = true
	}
	if override.Preview.SlowPrepareWarning != "" {
		result.Preview.SlowPrepareWarning = override.Preview.SlowPrepareWarning
	}
	if override.Preview.PreloadConcurrency != 0 {
		result.Preview.PreloadConcurrency = override.Preview.PreloadConcurrency
	}
	if override.Selection != nil {
		result.Selection = override.Selection
	}
	if override.StateFile != "" {
		result.StateFile = override.StateFile
	}

	result.Parameters = mergeMaps(base.Parameters, override.Parameters)
	result.Args = mergeMaps(base.Args, override.Args)
	result.Globals = mergeMaps(base.Globals, override.Globals)
	result.Extensions = mergeMaps(base.Extensions, override.Extensions)
	result.ArgTypes = mergeMaps(base.ArgTypes, override.ArgTypes)
	result.GlobalTypes = mergeMaps(base.GlobalTypes, override.GlobalTypes)

	return &result
}

func mergeMaps[M ~map[string]V, V any](base, override M) M {
	if len(override) == 0 {
		return base
	}
	out := make(M, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// expandEnvVars replaces ${VAR} with environment variable values.
// ${VAR:-default} falls back to default when VAR is unset or empty.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
