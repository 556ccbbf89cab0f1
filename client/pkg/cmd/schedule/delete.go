package schedule

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func newDeleteCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a backup schedule",
		Long:    "Delete a backup schedule and remove its trigger. Backups it created are kept.",
		Example: "nexdb schedule delete --id <schedule_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := cmdutil.ParseID("schedule", id)
			if err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			if err := svc.DeleteSchedule(ctx, scheduleID); err != nil {
				return err
			}

			cmdutil.PrintS("schedule deleted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the schedule")
	return cmd
}
