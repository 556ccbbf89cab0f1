package schedule

import (
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
	"nexdb/internal/types"
)

func newListCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			schedules, err := svc.ListSchedules(ctx)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(schedules))
			for _, next := range schedules {
				database := next.DatabaseID.String()
				if next.Database != nil {
					database = next.Database.Name
				}
				rows = append(rows, table.Row{
					next.ID.String(),
					database,
					describe(next),
					next.RetentionCount,
					next.Enabled,
					next.UploadToRemote,
					cmdutil.FormatTime(next.NextRunAt),
				})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"ID", "Database", "When", "Retention", "Enabled", "Upload", "Next Run"}, rows))
			return nil
		},
	}
}

func describe(s api.Schedule) string {
	if s.Description != "" {
		return s.Description
	}

	switch s.Frequency {
	case types.FrequencyCustom:
		return s.Expression
	default:
		return fmt.Sprintf("%s at %02d:%02d", s.Frequency, s.Hour, s.Minute)
	}
}
