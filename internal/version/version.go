// Package version reports the tasktalk release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Override is set at build time via -ldflags "-X .../version.Override=v1.2.3".
var Override string

// Get returns the current version, with whitespace trimmed.
func Get() string {
	if v := strings.TrimSpace(Override); v != "" {
		return strings.TrimPrefix(v, "v")
	}
	return strings.TrimSpace(versionContent)
}
