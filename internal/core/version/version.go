// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/guiyumin/vbrief/internal/core/version.Version=...".
package version

var Version = "dev"
