package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/picogrid/hexfleet/cmd/cli/cmd"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
