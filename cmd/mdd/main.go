// Command mdd is a command-line client for the MDD API.
//
// The access token is kept in a credentials file and the refresh cookie next
// to it, so an expired token is refreshed transparently on the next command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// Cobra prints the error
		os.Exit(1)
	}
}
