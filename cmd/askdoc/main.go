// Command askdoc is the command-line client for an askdoc server.
package main

import (
	"fmt"
	"os"

	"github.com/rhuss/askdoc/cmd/askdoc/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
