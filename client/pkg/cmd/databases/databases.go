package databases

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
)

func NewDatabasesCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases <command>",
		Aliases: []string{"db"},
		Short:   "Manage the databases of a server",
	}

	cmd.AddCommand(newAddCmd(factory))
	cmd.AddCommand(newCreateCmd(factory))
	cmd.AddCommand(newListCmd(factory))
	cmd.AddCommand(newRemoteCmd(factory))
	return cmd
}

func newAddCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		server string
		params api.AddDatabaseParams
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a database to a server",
		Example: "nexdb databases add --server-id <server_id> --name shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", server)
			if err != nil {
				return err
			}

			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			db, err := svc.AddDatabase(ctx, serverID, params)
			if err != nil {
				return err
			}

			cmdutil.PrintS("database added! " + db.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server-id", "s", "", "ID of the server the database lives on")
	cmd.Flags().StringVarP(&params.Name, "name", "n", "", "Name of the database")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Free text description")
	return cmd
}

func newListCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List databases",
		Long:  "List the databases of one server, or of every server when --server-id is omitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := uuid.Nil
			if server != "" {
				id, err := cmdutil.ParseID("server", server)
				if err != nil {
					return err
				}
				serverID = id
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			databases, err := svc.ListDatabases(ctx, serverID)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(databases))
			for _, next := range databases {
				serverName, engine := next.ServerID.String(), "-"
				if next.Server != nil {
					serverName, engine = next.Server.Name, next.Server.Engine.String()
				}
				rows = append(rows, table.Row{next.ID.String(), next.Name, engine, serverName, next.Description})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"ID", "Name", "Engine", "Server", "Description"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server-id", "s", "", "Only list databases of this server")
	return cmd
}

func newCreateCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		server string
		params api.CreateDatabaseParams
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a database on a server and add it",
		Long:    "Create a new database on the server itself, then add it so it can be backed up",
		Example: "nexdb databases create --server-id <server_id> --name shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", server)
			if err != nil {
				return err
			}

			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Creating database...")
			db, err := svc.CreateRemoteDatabase(ctx, serverID, params)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			cmdutil.PrintS("database created! " + db.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server-id", "s", "", "ID of the server to create the database on")
	cmd.Flags().StringVarP(&params.Name, "name", "n", "", "Name of the database")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Free text description")
	return cmd
}

func newRemoteCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "remote",
		Short:   "List the databases found on a server",
		Example: "nexdb databases remote --server-id <server_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID, err := cmdutil.ParseID("server", server)
			if err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Working...")
			databases, err := svc.ListRemoteDatabases(ctx, serverID)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(databases))
			for _, next := range databases {
				id := "-"
				if next.Registered {
					id = next.DatabaseID.String()
				}
				rows = append(rows, table.Row{next.Name, fmt.Sprint(next.Registered), id})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"Name", "Added", "ID"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server-id", "s", "", "ID of the server")
	return cmd
}
