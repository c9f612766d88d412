// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage provider authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize a provider with OAuth2 + PKCE",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show authentication state for all providers",
				Action: r.AuthStatus,
			},
			{
				Name:  "logout",
				Usage: "Discard a provider's stored token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.AuthLogout,
			},
		},
	}
}

// libraryCommand handles source library operations
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse and export a provider's library",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the groups in a provider's library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "items",
						Usage: "Fetch and list the items in every group",
					},
				},
				Action: r.LibraryList,
			},
			{
				Name:  "export",
				Usage: "Export a provider's library as JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: stdout)",
					},
					&cli.StringSliceFlag{
						Name:  "group",
						Usage: "Export only the named groups",
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// transferCommand handles library transfer operations
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer libraries between providers",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a full source → target transfer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source provider (spotify, tidal, file)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Target provider (spotify, tidal, file)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "group",
						Usage: "Transfer only the named groups",
					},
					&cli.StringFlag{
						Name:  "import",
						Usage: "Read the source library from a JSON export",
					},
					&cli.StringFlag{
						Name:  "export-dir",
						Usage: "Write a JSON record of the transfers to this directory",
					},
				},
				Action: r.TransferRun,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the credential store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the credential store",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// tuiCommand returns the top-level TUI command for interactive transfers.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive transfer interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Usage:    "Source provider (spotify, tidal, file)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target",
				Usage:    "Target provider (spotify, tidal, file)",
				Required: true,
			},
		},
		Action: r.TUI,
	}
}
