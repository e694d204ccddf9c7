// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X maestro/pkg/version.Version=v1.2.3 -X maestro/pkg/version.Commit=$(git rev-parse --short HEAD)"
//
//nolint:gochecknoglobals // ldflags injection needs package-level vars
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("maestro %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
