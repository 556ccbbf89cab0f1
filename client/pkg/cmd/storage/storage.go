package storage

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/cmdutil"
)

func NewStorageCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage <command>",
		Short: "Inspect the remote backup storage",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Check that the server can reach its remote storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Testing storage...")
			err = svc.TestStorage(ctx)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			cmdutil.PrintS("remote storage reachable")
			return nil
		},
	})
	return cmd
}
