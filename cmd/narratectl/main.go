// Command narratectl drives the NARRATE cataloguing backend from a terminal,
// one subcommand per panel action.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"narrate/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	root := newRootCmd(a)
	if err := execute(ctx, root, a); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// execute runs root. Under --quiet, a failed command replays its log lines.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	if err != nil && a.quiet {
		for _, e := range logx.Recent("", a.started) {
			fmt.Fprintln(root.ErrOrStderr(), e.String())
		}
	}
	return err
}
