// ABOUTME: Build identification for the audiopipe binary
// ABOUTME: Version is overridden at link time with -ldflags "-X"
package version

import "fmt"

// Version is the release version, set with
// -ldflags "-X github.com/Resonate-Protocol/audiopipe/internal/version.Version=1.2.3"
var Version = "0.1.0"

const (
	Product      = "audiopipe"
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version for logs and -version
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
