package servers

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func NewServersCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers <command>",
		Aliases: []string{"s"},
		Short:   "Manage database servers",
		Long:    "Register, test, view and delete the MySQL and PostgreSQL servers nexdb backs up",
	}

	cmd.AddCommand(newAddCmd(factory))
	cmd.AddCommand(newListCmd(factory))
	cmd.AddCommand(newTestCmd(factory))
	cmd.AddCommand(newDeleteCmd(factory))
	return cmd
}
