// Package main is the entry point for the nudged CLI.
package main

import (
	"os"

	"github.com/runger/nudge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
