package servers

import (
	"fmt"
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func newTestCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "test",
		Short:   "Test the connection to a database server",
		Example: "nexdb servers test --id <server_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", id)
			if err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Connecting...")
			result, err := svc.TestServer(ctx, serverID)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			cmdutil.PrintS(fmt.Sprintf("connected to %s %s in %dms", result.Engine, result.Version, result.LatencyMS))
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the server")
	return cmd
}
