// Package build holds build-time version information injected via ldflags.
//
//	go build -ldflags "-X github.com/RyanBlaney/sonido-frontend/cmd/sonido-frontend/internal/build.Version=v0.1.0 \
//	  -X github.com/RyanBlaney/sonido-frontend/cmd/sonido-frontend/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("sonido-frontend %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
