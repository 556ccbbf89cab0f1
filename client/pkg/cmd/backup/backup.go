package backup

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
	"nexdb/client/pkg/cmd/backup/create"
	"nexdb/client/pkg/cmd/backup/download"
	"nexdb/client/pkg/cmd/backup/list"
	"nexdb/client/pkg/cmd/backup/remove"
	"nexdb/client/pkg/cmd/backup/rundue"
)

func NewBackupCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup <command>",
		Aliases: []string{"bc"},
		Short:   "Manage database backups",
		Long:    "Create, view and delete database backups. Download a specific backup file",
	}

	cmd.AddCommand(create.NewCreateBackupCmd(factory))
	cmd.AddCommand(list.NewListBackupsCmd(factory))
	cmd.AddCommand(remove.NewDeleteBackupCmd(factory))
	cmd.AddCommand(download.NewDownloadBackupCmd(factory))
	cmd.AddCommand(rundue.NewRunDueCmd(factory))
	return cmd
}
