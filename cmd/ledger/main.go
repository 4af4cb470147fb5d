package main

import (
	"context"
	"os"

	"budgetledger/internal/cli"
	"budgetledger/internal/commands"
)

func main() {
	// Load .env file for local development
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(context.Background())
	err := commands.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
