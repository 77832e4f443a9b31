// Package main is the entry point for the weftend CLI.
package main

import (
	"os"

	"github.com/diblac17-eng/weftend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
