package servers

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func newListCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List database servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Working...")
			servers, err := svc.ListServers(ctx)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(servers))
			for _, next := range servers {
				project := "-"
				if next.ProjectID != uuid.Nil {
					project = next.ProjectID.String()
				}
				rows = append(rows, table.Row{
					next.ID.String(),
					next.Name,
					next.Engine,
					fmt.Sprintf("%s@%s:%d", next.Username, next.Host, next.EffectivePort()),
					project,
					next.CreatedAt.Format("02-01-2006"),
				})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"ID", "Name", "Engine", "Address", "Project", "Time Created"}, rows))
			return nil
		},
	}
}
