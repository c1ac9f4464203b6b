package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/syncer"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Strategy string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull, merge and push local vaults",
		Long: `Run one sync cycle per vault: pull the latest server snapshot, merge it
with local edits and push the result if anything changed.

Without --vault every local vault is synced, in parallel.

Strategies:
  merge        newest write wins per entry (default)
  local-wins   keep the local copy, overwrite the server
  remote-wins  drop local edits, take the server copy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return runSync(ctx, opts, app, cmd)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", "merge", "conflict strategy (merge|local-wins|remote-wins)")
	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions, app *App, cmd *cobra.Command) error {
	strategy, err := vault.ParseStrategy(opts.Strategy)
	if err != nil {
		return err
	}

	vaults := []string{opts.VaultID}
	if opts.VaultID == "" {
		if vaults, err = app.Vaults.Vaults(ctx); err != nil {
			return err
		}
		if len(vaults) == 0 {
			return errNoVault
		}
	}
	for _, id := range vaults {
		if err := opts.unlock(ctx, cmd, app, id); err != nil {
			return err
		}
	}

	reports, err := app.Syncer.SyncAll(ctx, vaults, syncer.WithStrategy(strategy))
	for _, r := range reports {
		if r != nil {
			printReport(cmd.OutOrStdout(), r)
		}
	}
	return err
}

func printReport(w io.Writer, r *syncer.Report) {
	fmt.Fprintf(w, "%s: %s, version %d", r.VaultID, r.State, r.Version)
	if r.Pushed {
		fmt.Fprint(w, ", pushed")
	}
	if r.Merge != nil && r.Merge.ConflictsResolved > 0 {
		fmt.Fprintf(w, ", %d conflicts resolved", r.Merge.ConflictsResolved)
	}
	if r.Attempts > 1 {
		fmt.Fprintf(w, " (%d attempts)", r.Attempts)
	}
	fmt.Fprintln(w)
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show the snapshot history kept by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID, err := rootOpts.resolveVault(ctx, app)
				if err != nil {
					return err
				}
				versions, err := app.Remote.ListVersions(ctx, vaultID, limit)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tDEVICE\tCREATED\tSIZE")
				for _, v := range versions {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", v.Version, v.DeviceID, v.CreatedAt.Local().Format(time.DateTime), v.Size)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of versions to show (0 for the server maximum)")
	return cmd
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices registered with the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID, err := rootOpts.resolveVault(ctx, app)
				if err != nil {
					return err
				}
				devices, err := app.Remote.ListDevices(ctx, vaultID)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DEVICE\tFIRST SEEN\tLAST PUSH\tLAST PULL")
				for _, d := range devices {
					name := d.DeviceID
					if name == app.Vaults.DeviceID() {
						name += " (this device)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, stamp(d.FirstSeenAt), stamp(d.LastPushAt), stamp(d.LastPullAt))
				}
				return tw.Flush()
			})
		},
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
