package schedule

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func newMaterializedCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "materialized",
		Short: "List the triggers installed by the server's scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			entries, err := svc.ListMaterialized(ctx)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(entries))
			for _, next := range entries {
				rows = append(rows, table.Row{
					next.ScheduleID.String(),
					next.Engine,
					next.Database,
					next.Expression,
					next.Upload,
					cmdutil.FormatTime(&next.NextRun),
				})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"Schedule", "Engine", "Database", "Expression", "Upload", "Next Run"}, rows))
			return nil
		},
	}
}
