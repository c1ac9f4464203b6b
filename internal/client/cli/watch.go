package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep local vaults in sync until interrupted",
		Long: `Unlock every local vault and keep them all in sync.

A cycle runs at start, on every --sync-interval tick, when the server
announces a new version from another device, and shortly after a local
write (debounced by --watch-debounce). Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return rootOpts.withApp(cmd, func(_ context.Context, app *App) error {
				return runWatch(ctx, rootOpts, app, cmd)
			})
		},
	}
}

func runWatch(ctx context.Context, opts *RootOptions, app *App, cmd *cobra.Command) error {
	vaults, err := app.Vaults.Vaults(ctx)
	if err != nil {
		return err
	}
	if len(vaults) == 0 {
		return errNoVault
	}
	for _, id := range vaults {
		if err := opts.unlock(ctx, cmd, app, id); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d vault(s), Ctrl-C to stop\n", len(vaults))
	return app.Daemon().Run(ctx)
}
