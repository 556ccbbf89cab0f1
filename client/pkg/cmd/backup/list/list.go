package list

import (
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
)

func NewListBackupsCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		database string
		params   api.ListBackupsParams
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List backups",
		Long:    "List backups, newest first",
		Example: "nexdb backup list --database-id <database_id> --status completed --limit 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			if database != "" {
				id, err := cmdutil.ParseID("database", database)
				if err != nil {
					return err
				}
				params.DatabaseID = id
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Working...")
			backups, err := svc.ListBackups(ctx, params)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(backups))
			for _, next := range backups {
				schedule := "manual"
				if next.ScheduleID != uuid.Nil {
					schedule = next.ScheduleID.String()
				}
				rows = append(rows, table.Row{
					next.ID.String(),
					next.DatabaseName,
					next.Status,
					next.Location,
					cmdutil.HumanSize(next.SizeBytes),
					schedule,
					cmdutil.FormatTime(&next.CreatedAt),
				})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"ID", "Database", "Status", "Location", "Size", "Schedule", "Time Created"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database-id", "d", "", "Only list backups of this database")
	cmd.Flags().StringVarP(&params.Status, "status", "s", "", "Only list backups with this status")
	cmd.Flags().IntVarP(&params.Limit, "limit", "l", 0, "Maximum number of backups to list")
	return cmd
}
