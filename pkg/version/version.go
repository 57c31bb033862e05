// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X tilebridge/pkg/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info is the build description reported by the CLI and the gateway.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build info of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersion returns the short version.
func GetVersion() string {
	return Version
}

// String renders the info on one line. Development builds include the
// commit so bug reports can be traced.
func (i Info) String() string {
	if i.Version == "dev" {
		return fmt.Sprintf("tilebridge %s (commit %s, built %s, %s %s)",
			i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("tilebridge %s (%s %s)", i.Version, i.GoVersion, i.Platform)
}
