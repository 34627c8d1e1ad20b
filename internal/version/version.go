// Package version exposes the build version embedded at compile time.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Info returns the version line printed by the CLI.
func Info(name string) string {
	return fmt.Sprintf("%s version %s (%s, %s/%s)", name, Get(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
