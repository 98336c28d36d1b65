// Package version holds the build identity of stubby.
package version

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables set via ldflags, e.g.
//
//	-ldflags "-X github.com/getmockd/stubby/pkg/version.Commit=$(git rev-parse HEAD)"
var (
	// Version is the semantic version reported by the control plane.
	Version = "0.1.0"
	// Commit is the VCS revision the binary was built from.
	Commit = "none"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Info is the full build description printed by `stubby version`.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// Get returns the build info, filling Commit and Date from the embedded VCS
// metadata when they were not set at link time.
func Get() Info {
	commit := Commit
	date := BuildDate

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "none" {
					commit = setting.Value
				}
			case "vcs.time":
				if date == "unknown" {
					date = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					commit += "-dirty"
				}
			}
		}
	}

	return Info{
		Version: Version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
}
