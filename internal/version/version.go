// Package version provides the semantic version of the running binary.
package version

import "fmt"

// Version is the service version, bumped on release.
var Version = "1.0.0"

// DevVersion is the service version suffix used outside prod mode.
var DevVersion = "dev"

func GetCurrentVersion(mode string) string {
	if mode == "prod" {
		return Version
	}
	return fmt.Sprintf("%s-%s", Version, DevVersion)
}
