package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/entrypoint"
)

func newCreateAdminCommand() *cobra.Command {
	var in auth.NewUser

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Username == "" || in.Password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			in.Role = entities.UserRoleAdmin
			if in.FullName == "" {
				in.FullName = in.Username
			}
			return withApp(func(app *entrypoint.App) error {
				user, err := app.Auth.CreateUser(in)
				if err != nil {
					return err
				}
				app.Audit.LogActivity(0, entities.AuditEventCreate, "user", user.ID, "created administrator "+user.Username+" from the command line", nil)
				cmd.Printf("Created administrator %q (id %d)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "Display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	return cmd
}
