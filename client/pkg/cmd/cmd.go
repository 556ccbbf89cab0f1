package cmd

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
	"nexdb/client/pkg/cmd/backup"
	configcmd "nexdb/client/pkg/cmd/config"
	"nexdb/client/pkg/cmd/databases"
	"nexdb/client/pkg/cmd/projects"
	"nexdb/client/pkg/cmd/schedule"
	"nexdb/client/pkg/cmd/servers"
	"nexdb/client/pkg/cmd/storage"
	"nexdb/client/pkg/cmd/users"
)

func New(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nexdb",
		Short:         "nexdb - database backups for MySQL and PostgreSQL servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(configcmd.NewConfigCmd())
	cmd.AddCommand(projects.NewProjectsCmd(factory))
	cmd.AddCommand(servers.NewServersCmd(factory))
	cmd.AddCommand(databases.NewDatabasesCmd(factory))
	cmd.AddCommand(users.NewUsersCmd(factory))
	cmd.AddCommand(backup.NewBackupCmd(factory))
	cmd.AddCommand(schedule.NewScheduleCmd(factory))
	cmd.AddCommand(storage.NewStorageCmd(factory))
	return cmd
}
