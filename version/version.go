// Package version holds the build-time version string, set via
// -ldflags by the release build; "dev" otherwise.
package version

var Version = "dev"
