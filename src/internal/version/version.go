// FILE: logthrottle/src/internal/version/version.go
package version

import "fmt"

// Name is the service name reported by the binary and the status endpoint
const Name = "logthrottle"

var (
	// Version is set at compile time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Returns a formatted version string
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", Name, Version, GitCommit, BuildTime)
}

// Returns just the version tag
func Short() string {
	return Version
}

// ServerName is the value of the HTTP Server header
func ServerName() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
