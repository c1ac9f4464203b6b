package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultsync/internal/client/config"
	"github.com/dmitrijs2005/vaultsync/internal/configx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	ConfigPath string
	VaultID    string

	// Config is the effective configuration, valid once PersistentPreRunE
	// has run.
	Config *config.Config

	// NewApp builds the application. Defaults to NewApp without extra dial
	// options.
	NewApp AppFactory

	// Password returns the master password of a vault. Defaults to the
	// environment, then a terminal prompt.
	Password func(vaultID string, w io.Writer) ([]byte, error)

	flags *config.Config
}

// NewRootCommand creates the root command for the vaultsync client.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith creates the root command around opts, filling in
// defaults for the unset hooks.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	if opts.NewApp == nil {
		opts.NewApp = func(ctx context.Context, cfg *config.Config) (*App, error) {
			return NewApp(ctx, cfg)
		}
	}
	if opts.Password == nil {
		opts.Password = masterPassword
	}
	opts.flags = &config.Config{}
	opts.flags.LoadDefaults()

	cmd := &cobra.Command{
		Use:   "vaultsync",
		Short: "vaultsync - encrypted multi-device vault sync",
		Long: `Keep an end-to-end encrypted vault in sync across devices.

Entries are encrypted on the device before they leave it; the server only
stores opaque, versioned snapshots. Concurrent edits are merged per record,
the newest write wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (JSON, or YAML by extension)")
	cmd.PersistentFlags().StringVarP(&opts.VaultID, "vault", "V", "", "vault id (default: the only local vault)")
	config.BindFlags(cmd.PersistentFlags(), opts.flags)

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewVersionsCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))

	return cmd
}

// loadConfig layers defaults, the config file and the environment, then
// reapplies only the flags that were set on the command line.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	if err := configx.LoadDotEnv(); err != nil {
		return err
	}

	path := o.ConfigPath
	if path == "" {
		configx.NewEnv().String("CONFIG", &path)
	}
	cfg, err := config.Load(path, configx.NewEnv())
	if err != nil {
		return err
	}

	overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	config.BindFlags(overlay, cfg)

	var setErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if overlay.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		if err := overlay.Set(f.Name, f.Value.String()); err != nil {
			setErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return setErr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	o.Config = cfg
	return nil
}

// withApp builds the app for the duration of fn.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := o.NewApp(ctx, o.Config)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

var errNoVault = errors.New("no local vault; run 'vaultsync init <vault-id>' first")

// resolveVault returns the vault named by --vault or the only local vault.
func (o *RootOptions) resolveVault(ctx context.Context, app *App) (string, error) {
	if o.VaultID != "" {
		return o.VaultID, nil
	}
	ids, err := app.Vaults.Vaults(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", errNoVault
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%d local vaults %v, pick one with --vault", len(ids), ids)
	}
}

// unlock prompts for the password of vaultID and opens the local copy.
func (o *RootOptions) unlock(ctx context.Context, cmd *cobra.Command, app *App, vaultID string) error {
	pw, err := o.Password(vaultID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer wipe(pw)
	return app.Vaults.Unlock(ctx, vaultID, pw)
}

// openVault resolves and unlocks the vault the command works on.
func (o *RootOptions) openVault(ctx context.Context, cmd *cobra.Command, app *App) (string, error) {
	vaultID, err := o.resolveVault(ctx, app)
	if err != nil {
		return "", err
	}
	if err := o.unlock(ctx, cmd, app, vaultID); err != nil {
		return "", err
	}
	return vaultID, nil
}
