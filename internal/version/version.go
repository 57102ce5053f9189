// Package version exposes lobbyd's build metadata, set via -ldflags at
// build time (e.g. -X github.com/gg2-lobby/lobbyd/internal/version.Version=1.2.3).
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the released semantic version, or "dev" outside a tagged build.
	Version = "dev"
	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Info bundles the build metadata lobbyd reports via `lobbyd version`.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// Current snapshots the package-level build variables plus the Go
// runtime version used to compile this binary.
func Current() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders the build metadata as the multi-line block printed by
// `lobbyd version`.
func (i Info) String() string {
	return fmt.Sprintf("lobbyd version %s\nGit commit: %s\nBuild date: %s\nGo version: %s",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
