package main

import (
	"os"

	"github.com/karesti/protostream/internal/cli/commands"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	commands.Version = Version
	commands.GitCommit = GitCommit
	commands.BuildDate = BuildDate

	// Execute already printed the error.
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
