// Package version records the build version stamped at release time.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
