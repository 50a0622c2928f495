package main

import (
	"os"

	"github.com/demandcast/backend/cmd/forecast/commands"
)

// main is the entry point for the forecasting CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
