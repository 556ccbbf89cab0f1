package download

import (
	"github.com/spf13/cobra"
	"io"
	"nexdb/client/internal/cmdutil"
	"os"
)

func NewDownloadBackupCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var id string
	var location string
	cmd := &cobra.Command{
		Use:     "download",
		Short:   "Download a backup",
		Long:    "Download a database backup file. To see the list of backups, use 'nexdb backup list'",
		Example: "nexdb backup download --id <backup_id> --location <location>",
		RunE: func(cmd *cobra.Command, args []string) error {
			backupID, err := cmdutil.ParseID("backup", id)
			if err != nil {
				return err
			}

			if location == "" {
				location = backupID.String() + ".sql"
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Downloading backup...")
			defer cmdutil.StopLoading()

			backup, err := svc.DownloadBackup(ctx, backupID)
			if err != nil {
				return err
			}

			defer func() {
				_ = backup.Close()
			}()

			backupFile, err := os.OpenFile(location, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
			if err != nil {
				return err
			}

			if _, err := io.Copy(backupFile, backup); err != nil {
				_ = backupFile.Close()
				_ = os.Remove(location)
				return err
			}

			if err := backupFile.Close(); err != nil {
				return err
			}

			cmdutil.StopLoading()
			cmdutil.PrintS("Backup downloaded successfully: " + location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the backup you want to download")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Location to download the backup file")
	return cmd
}
