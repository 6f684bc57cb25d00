// Package main is the entry point for the phenotype-mcp server and its
// operator commands.
package main

import (
	"os"

	"github.com/dshills/phenotype-mcp/cmd/phenotype-mcp/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
