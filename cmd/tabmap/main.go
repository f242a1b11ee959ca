// Command tabmap is the CLI entry point.
package main

import (
	"os"

	"github.com/tabmap-io/tabmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
