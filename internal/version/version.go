// Package version holds build metadata.
package version

// Set via -ldflags at release build time; the defaults cover plain go build.
var (
	Version   = "v1.2.0-dev"
	BuildTime = "unknown"
)
