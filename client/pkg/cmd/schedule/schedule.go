package schedule

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func NewScheduleCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule <command>",
		Aliases: []string{"sc"},
		Short:   "Manage backup schedules",
		Long:    "Create, view and delete backup schedules, and inspect the triggers installed for them",
	}

	cmd.AddCommand(newCreateCmd(factory))
	cmd.AddCommand(newListCmd(factory))
	cmd.AddCommand(newDeleteCmd(factory))
	cmd.AddCommand(newMaterializedCmd(factory))
	return cmd
}
