// Package main is the entry point for the transport-cost CLI.
package main

import (
	"os"

	"transport-cost/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
