// Package main provides the entry point for the sopd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sandeepkv93/sopd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
