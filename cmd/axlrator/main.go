// Package main provides the entry point for the axlrator CLI.
package main

import (
	"os"

	"github.com/passion1014/axlrator-continue/cmd/axlrator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
