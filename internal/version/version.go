// Package version carries the build identity stamped in via -ldflags.
package version

var (
	// Version is the release version string
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
