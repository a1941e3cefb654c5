// Package version holds the current build version.
package version

// Version is the service current released version.
var Version = "0.2.1"

// DevVersion is the service current development version.
var DevVersion = "0.2.1"

func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}
