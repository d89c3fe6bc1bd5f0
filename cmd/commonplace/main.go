// Package main provides the entry point for the commonplace CLI.
package main

import (
	"os"

	"github.com/commonplacehq/commonplace/cmd/commonplace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
