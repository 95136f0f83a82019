package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dosanma1/wheelforge/internal/cmd"
	"github.com/dosanma1/wheelforge/internal/shell"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		// Propagate the exit status of a failed child command.
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			stop()
			os.Exit(exitErr.Code)
		}
		stop()
		os.Exit(1)
	}
}
