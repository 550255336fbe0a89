package main

import (
	"os"

	"github.com/xaenox/journal-engine/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
