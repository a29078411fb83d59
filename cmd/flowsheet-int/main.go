// flowsheet-int - command-line client for a flowsheet simulation backend
package main

import (
	"os"

	"github.com/watertap-org/flowsheet-int/internal/cli"
	"github.com/watertap-org/flowsheet-int/internal/version"
)

// Version information, set with -ldflags "-X main.Version=... -X main.BuildTime=..."
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	// internal/version is the single source read by all packages
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
