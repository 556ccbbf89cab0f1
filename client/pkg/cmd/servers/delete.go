package servers

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func newDeleteCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		id    string
		force bool
	)

	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a database server",
		Long:    "Delete a database server together with its databases and schedules. Backup records are kept.",
		Example: "nexdb servers delete --id <server_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", id)
			if err != nil {
				return err
			}

			if !force && !cmdutil.Confirm("Delete server "+serverID.String()) {
				return nil
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			if err := svc.DeleteServer(ctx, serverID); err != nil {
				return err
			}

			cmdutil.PrintS("server deleted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the server")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}
