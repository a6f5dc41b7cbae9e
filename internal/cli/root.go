// Package cli defines the clinic command line: the server plus the
// maintenance commands an administrator runs from the workstation.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/entrypoint"
	"github.com/clinicmgr/clinic/internal/logging"
)

// BuildInfo is stamped at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

// NewRootCommand returns the clinic command. Without a subcommand it serves HTTP.
func NewRootCommand(build BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:           "clinic",
		Short:         "Clinic management server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(config.NewConfig(), build.Version)
		},
	}

	root.AddCommand(
		newServeCommand(build),
		newBackupCommand(),
		newBackupsCommand(),
		newRestoreCommand(),
		newKeygenCommand(),
		newCreateAdminCommand(),
		newExportCommand(),
		newVersionCommand(build),
	)
	return root
}

func newServeCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default if no command given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(config.NewConfig(), build.Version)
		},
	}
}

func newVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("clinic %s (%s)\n", build.Version, build.Commit)
		},
	}
}

// withApp loads configuration, applies overrides, opens the database and runs fn.
func withApp(fn func(app *entrypoint.App) error, overrides ...func(cfg *config.Config)) error {
	cfg := config.NewConfig()
	for _, override := range overrides {
		override(cfg)
	}
	logging.Configure(cfg.Log)

	app, err := entrypoint.Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
