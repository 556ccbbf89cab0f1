package remove

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func NewDeleteBackupCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a backup",
		Long:    "Delete a backup record and its local file",
		Example: "nexdb backup delete --id <backup_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			backupID, err := cmdutil.ParseID("backup", id)
			if err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			if err := svc.DeleteBackup(ctx, backupID); err != nil {
				return err
			}

			cmdutil.PrintS("backup deleted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the backup you want to delete")
	return cmd
}
