package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/client/models"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <vault-id>",
		Short: "Create a vault or join an existing one from this device",
		Long: `Register this device with a vault on the server.

If nobody has created the vault yet it is created with a fresh salt.
Otherwise the master password must match the one the vault was created
with, and the current server snapshot is pulled right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return runInit(ctx, rootOpts, app, args[0], cmd)
			})
		},
	}
}

func runInit(ctx context.Context, opts *RootOptions, app *App, vaultID string, cmd *cobra.Command) error {
	pw, err := opts.Password(vaultID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer wipe(pw)

	reg, err := app.Vaults.Init(ctx, vaultID, pw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reg.Created {
		fmt.Fprintf(out, "Created vault %s (device %s)\n", vaultID, app.Vaults.DeviceID())
		return nil
	}
	fmt.Fprintf(out, "Joined vault %s at version %d (device %s)\n", vaultID, reg.CurrentVersion, app.Vaults.DeviceID())

	if reg.CurrentVersion == 0 {
		return nil
	}
	rep, err := app.Syncer.Sync(ctx, vaultID)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	printReport(out, rep)
	return nil
}

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
	Category string
	Tags     string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put [entry-id]",
		Short: "Add an entry, or update fields of an existing one",
		Long: `Add an entry to the vault, or update an existing entry.

Without an id a new entry is created and its id printed. With an id only
the fields given on the command line change; the rest are kept. An id
that is not in the vault yet creates the entry under that id.

Example:
  vaultsync put --title github --username me --password s3cret
  vaultsync put 5f0c... --notes "rotated 2026-10"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				return runPut(ctx, opts, app, id, cmd)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "entry title")
	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "secret to store")
	cmd.Flags().StringVar(&opts.URL, "url", "", "site address")
	cmd.Flags().StringVarP(&opts.Notes, "notes", "n", "", "free text notes, - reads them from stdin")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Tags, "tags", "", "comma separated tags")

	return cmd
}

func runPut(ctx context.Context, opts *PutOptions, app *App, id string, cmd *cobra.Command) error {
	vaultID, err := opts.openVault(ctx, cmd, app)
	if err != nil {
		return err
	}

	var e models.Entry
	update := false
	if id != "" {
		e, err = app.Vaults.Get(ctx, vaultID, id)
		switch {
		case err == nil:
			update = true
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
	}

	if opts.Notes == "-" {
		if opts.Notes, err = GetMultiline(bufio.NewReader(cmd.InOrStdin()), "Notes", cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if !update || fl.Changed(name) {
			*dst = v
		}
	}
	set("title", &e.Title, opts.Title)
	set("username", &e.Username, opts.Username)
	set("password", &e.Password, opts.Password)
	set("url", &e.URL, opts.URL)
	set("notes", &e.Notes, opts.Notes)
	set("category", &e.Category, opts.Category)
	if !update || fl.Changed("tags") {
		e.Tags = models.ParseTags(opts.Tags)
	}

	id, err = app.Vaults.Put(ctx, vaultID, id, e)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <entry-id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID, err := rootOpts.openVault(ctx, cmd, app)
				if err != nil {
					return err
				}
				e, err := app.Vaults.Get(ctx, vaultID, args[0])
				if err != nil {
					return err
				}
				printEntry(cmd, args[0], e, reveal)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&reveal, "reveal", "r", false, "print the password in clear")
	return cmd
}

func printEntry(cmd *cobra.Command, id string, e models.Entry, reveal bool) {
	out := cmd.OutOrStdout()
	pw := e.Password
	if !reveal && pw != "" {
		pw = "********"
	}

	fields := []struct{ name, value string }{
		{"id", id},
		{"title", e.Title},
		{"username", e.Username},
		{"password", pw},
		{"url", e.URL},
		{"category", e.Category},
		{"tags", strings.Join(e.Tags, ",")},
		{"notes", e.Notes},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(out, "%-9s %s\n", f.name+":", f.value)
		}
	}
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <entry-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an entry",
		Long: `Delete an entry. The deletion is kept as a tombstone so that it
reaches the other devices on the next sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID, err := rootOpts.openVault(ctx, cmd, app)
				if err != nil {
					return err
				}
				return app.Vaults.Remove(ctx, vaultID, args[0])
			})
		},
	}
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List entries of the vault",
		Long: `List the live entries of the vault.

With --search only entries whose title, username, url, notes or tags
contain the text (ignoring case) are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID, err := rootOpts.openVault(ctx, cmd, app)
				if err != nil {
					return err
				}
				items, err := app.Vaults.List(ctx, vaultID, search)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case len(items) > 0:
					for _, it := range items {
						fmt.Fprintln(out, it.String())
					}
				case search != "":
					fmt.Fprintf(out, "(no entries match %q)\n", search)
				default:
					fmt.Fprintln(out, "(empty)")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "only entries containing this text")
	return cmd
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <vault-id>",
		Short: "Remove the local copy of a vault",
		Long: `Remove the local copy of a vault together with its access token and
sync state. The master password is checked first. Unpushed edits are lost;
run sync before forgetting. The server copy is kept and the vault can be
joined again with init.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				vaultID := args[0]
				if err := rootOpts.unlock(ctx, cmd, app, vaultID); err != nil {
					return err
				}
				if err := app.Vaults.Forget(ctx, vaultID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot vault %s\n", vaultID)
				return nil
			})
		},
	}
}
