// Command q sends a prompt to an LLM, optionally with local context.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfushimi/q/internal/render"
)

var version = "dev"

// ExitCodeCancelled is returned when the user interrupts a query
const ExitCodeCancelled = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	render.PrintError(os.Stderr, err)
	stop()
	if errors.Is(err, context.Canceled) {
		os.Exit(ExitCodeCancelled)
	}
	os.Exit(1)
}
