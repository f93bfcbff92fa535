package main

import (
	"fmt"
	"os"

	"protask/internal/cli"
	"protask/internal/config"
)

func main() {
	// Create the client factory based on environment
	factory := NewClientFactory(getEnvironment(), os.Stderr)

	// Configuration is loaded and the client connected once flags are parsed
	root := cli.NewRootCommand(config.NewLoader(), factory.Connect)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
