// Package main is the entry point for ipreporter.
package main

import (
	"fmt"
	"os"

	"ipreporter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
