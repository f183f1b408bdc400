// Command sftpc stages manifest-described file packages and uploads them
// to remote sites over SFTP.
package main

import (
	"os"

	"github.com/avalon/sftpc/internal/cli"
)

var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
