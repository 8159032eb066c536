/*
Package main is the entry point for the chatline terminal client.

It loads configuration, initializes the global logging system, restores the saved session
and runs the channel store's event loop next to the interactive console until the user
exits or an interrupt signal (SIGINT, SIGTERM) arrives.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		stop()
		os.Exit(1)
	}
}
