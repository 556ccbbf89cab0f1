package rundue

import (
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func NewRunDueCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "run-due",
		Short: "Back up every database with an enabled schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Backing up...")
			results, err := svc.RunAllDue(ctx)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			failed := 0
			rows := make([]table.Row, 0, len(results))
			for _, res := range results {
				status, file := "failed", "-"
				if res.Record != nil {
					status, file = string(res.Record.Status), res.Record.Filename
				}
				if !res.Succeeded() {
					failed++
				}
				rows = append(rows, table.Row{res.DatabaseName, status, file, res.Error + res.UploadError})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"Database", "Status", "File", "Error"}, rows))
			if failed > 0 {
				return fmt.Errorf("%d of %d backups failed", failed, len(results))
			}
			return nil
		},
	}
}
