// Package paths names the files storyview keeps for a project.
//
// Everything lives under <project>/.storyview, next to storyview.yml:
// the daemon socket and pid file, the persisted session and daily logs.
package paths

import (
	"fmt"
	"path/filepath"
	"time"
)

// DirName is the per-project state directory.
const DirName = ".storyview"

// Defaults relative to the project directory, as written in storyview.yml.
var (
	DefaultSocket    = filepath.Join(DirName, "storyview.sock")
	DefaultStateFile = filepath.Join(DirName, "state.yml")
)

// Dir returns the state directory of the project rooted at root.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// PidFile returns the path to the daemon PID file.
func PidFile(root string) string {
	return filepath.Join(Dir(root), "storyview.pid")
}

// LogsDir returns the directory holding daily log files.
func LogsDir(root string) string {
	return filepath.Join(Dir(root), "logs")
}

// LogFile returns the log file a component writes to on the given day.
func LogFile(root, component string, day time.Time) string {
	return filepath.Join(LogsDir(root), fmt.Sprintf("%s-%s.log", component, day.Format("2006-01-02")))
}
