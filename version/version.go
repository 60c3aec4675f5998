// Package version reports build metadata for the storyview binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/grovetools/storyview/pkg/index"
)

// Set with -ldflags "-X github.com/grovetools/storyview/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"buildDate"`
	IndexFormat int    `json:"indexFormat"`
	GoVersion   string `json:"goVersion"`
	Platform    string `json:"platform"`
}

// GetInfo returns the build metadata. A binary built with `go install`
// carries no ldflags, so its module version and VCS revision are read from
// the embedded build info instead.
func GetInfo() Info {
	info := Info{
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
		IndexFormat: index.Version,
		GoVersion:   runtime.Version(),
		Platform:    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "none":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildDate == "unknown":
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

// Short returns the version with an abbreviated commit, e.g. "v0.3.1 (1a2b3c4)".
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, commit)
}

func (i Info) String() string {
	return fmt.Sprintf(
		"Version:\t%s\nCommit:\t\t%s\nBuild Date:\t%s\nIndex Format:\tv%d\nGo Version:\t%s\nPlatform:\t%s",
		i.Version, i.Commit, i.BuildDate, i.IndexFormat, i.GoVersion, i.Platform,
	)
}
