package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/crypto"
	"github.com/clinicmgr/clinic/internal/entrypoint"
	"github.com/clinicmgr/clinic/internal/tasks"
)

func newBackupCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a backup of the clinic database now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *entrypoint.App) error {
				info, err := tasks.RunBackup(cmd.Context(), app.Backups, app.Settings, app.Audit, 0)
				if err != nil {
					return err
				}
				cmd.Printf("Backup written to %s (%d bytes)\n", info.Path, info.Size)
				return nil
			}, func(cfg *config.Config) {
				if dir != "" {
					cfg.Backup.Dir = dir
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Write into this directory instead of BACKUP_DIR")
	return cmd
}

func newBackupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *entrypoint.App) error {
				list, err := app.Backups.List()
				if err != nil {
					return err
				}
				if len(list) == 0 {
					cmd.Printf("No backups in %s\n", app.Backups.Dir())
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tENCRYPTED")
				for _, b := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04"), b.Size, b.Encrypted)
				}
				return w.Flush()
			})
		},
	}
}

func newRestoreCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "restore <backup-name|file>",
		Short: "Replace the clinic database with a backup",
		Long: "Replace the clinic database with a backup from the backup directory or a file path.\n" +
			"Stop the server first. Every change made since the backup is lost.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("restore overwrites all current data, pass --yes to continue")
			}
			return withApp(func(app *entrypoint.App) error {
				path, err := app.ResolveBackup(args[0])
				if err != nil {
					return err
				}
				err = app.Backups.Restore(cmd.Context(), path)
				app.Audit.LogBackup(0, "restore", args[0], err)
				if err != nil {
					return err
				}
				cmd.Printf("Restored %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm that current data will be overwritten")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a BACKUP_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			cmd.Println(key)
			return nil
		},
	}
}
