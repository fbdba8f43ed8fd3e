// Package main is the entry point for the sonido-frontend CLI.
//
// Usage:
//
//	sonido-frontend [flags] <command> [args]
//
// Commands:
//
//	extract  - Compute log-mel features for a WAV file or raw PCM stream
//	inspect  - Show the tables a configuration produces
//	config   - Print the effective configuration
//	version  - Show version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-frontend/cmd/sonido-frontend/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
