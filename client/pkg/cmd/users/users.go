package users

import (
	"fmt"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
)

func NewUsersCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users <command>",
		Short: "Manage logins on a database server",
	}

	cmd.AddCommand(newCreateCmd(factory))
	return cmd
}

func newCreateCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		server string
		params api.CreateUserParams
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a login on a server",
		Long: "Create a login on a server, granting it every privilege on --database when set. " +
			"The password is read from " + cmdutil.EnvUserPassword + " or prompted for, and is not stored by nexdb.",
		Example: "nexdb users create --server-id <server_id> --username app --database shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", server)
			if err != nil {
				return err
			}

			password, err := cmdutil.ReadSecret(cmdutil.EnvUserPassword, fmt.Sprintf("Password for %s", params.Username))
			if err != nil {
				return err
			}
			params.Password = password

			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			user, err := svc.CreateDatabaseUser(ctx, serverID, params)
			if err != nil {
				return err
			}

			cmdutil.PrintS("user created! " + user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server-id", "s", "", "ID of the server to create the login on")
	cmd.Flags().StringVarP(&params.Username, "username", "u", "", "Name of the login")
	cmd.Flags().StringVarP(&params.Database, "database", "d", "", "Database to grant every privilege on")
	return cmd
}
