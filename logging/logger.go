package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/pkg/paths"
	"github.com/grovetools/storyview/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	var cfgDir string
	if cfg, err := config.LoadDefault(); err == nil {
		cfgDir = cfg.Dir()
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := newLogger(component, logCfg, cfgDir, isInteractive())
	loggers[component] = entry
	return entry
}

// newLogger builds a logger from an explicit configuration. cfgDir is the
// project directory; without one no default log file is written.
func newLogger(component string, logCfg Config, cfgDir string, interactive bool) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("STORYVIEW_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if lvl := logCfg.Components[component]; lvl != "" {
		levelStr = lvl
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("STORYVIEW_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	if logFilePath := FilePath(component, logCfg, cfgDir, time.Now()); logFilePath != "" {
		if file, err := openLogFile(logFilePath); err == nil {
			writers = append(writers, file)
		} else if logCfg.File.Path != "" {
			// Only warn if explicitly configured
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		}
	}

	stderrMode := logCfg.Format.StructuredToStderr
	if stderrMode == "" {
		stderrMode = "auto"
	}
	shouldLogToStderr := false
	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
	case "auto":
		// Interactive terminals only see structured logs when debugging.
		isDebug := os.Getenv("STORYVIEW_DEBUG") == "1" || logger.GetLevel() >= logrus.DebugLevel
		shouldLogToStderr = isDebug || !interactive
	}
	if shouldLogToStderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// FilePath returns the log file a component writes to on the given day, or
// "" when file logging is off.
func FilePath(component string, logCfg Config, cfgDir string, now time.Time) string {
	if logCfg.File.Disabled {
		return ""
	}
	if logCfg.File.Path != "" {
		return pathutil.Expand(logCfg.File.Path, cfgDir)
	}
	if cfgDir == "" {
		return ""
	}
	return paths.LogFile(cfgDir, component, now)
}

// DefaultFilePath resolves the log file of a component for today using the
// configuration found from the current directory.
func DefaultFilePath(component string) (string, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return "", err
	}
	var logCfg Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		return "", err
	}
	return FilePath(component, logCfg, cfg.Dir(), time.Now()), nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func isInteractive() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}
