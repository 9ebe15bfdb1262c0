// Mosaic - a session and background operation manager driven by
// single-letter commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mosaic/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mosaic: %v\n", err)
		os.Exit(1)
	}
}
