// Package version reports the build of the legalrag binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Overridden at build time:
//
//	go build -ldflags "-X github.com/kailas-cloud/legalrag/internal/version.Version=v1.2.0"
//
//nolint:gochecknoglobals // ldflags targets
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

// Get returns the build metadata, filling the commit and date from the
// module build info when ldflags did not set them.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Go = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("legalrag %s (%s, %s)", i.Version, commit, i.Go)
}
