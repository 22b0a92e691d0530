// Command sseloop consumes an event stream without gaps, reconnecting with the
// last event ID whenever a connection ends. It can also serve a numbered demo
// stream that honors Last-Event-ID.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		os.Exit(1)
	}
}
