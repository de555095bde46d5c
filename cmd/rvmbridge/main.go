// cmd/rvmbridge/main.go
//
// Entry point for the rvmbridge CLI. Every command works from a folder that
// holds (or gets) a .rvmbridge/ directory with the config file, the logs, and
// the persisted object lists.

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
