// Package buildinfo carries version data stamped at link time:
//
//	-X 'github.com/m3rciful/projectbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/projectbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/projectbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

func init() {
	if Commit != "local" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				Commit = s.Value[:7]
			} else if s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String renders the build as "version (commit, date)".
func String() string {
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, date)
}
