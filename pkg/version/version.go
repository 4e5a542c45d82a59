// Package version reports the narratectl build.
package version

import "fmt"

// Set at build time, e.g. go build -ldflags "-X narrate/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // ldflags targets
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the one-line build description.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
