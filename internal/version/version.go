// Package version holds build metadata set through -ldflags.
package version

import "fmt"

var (
	// Version is the release of rotvar.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata for the version command.
func String() string {
	return fmt.Sprintf("rotvar %s (%s, built %s)", Version, GitSHA, BuildTime)
}
