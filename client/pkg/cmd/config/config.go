package configcmd

import (
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	initcmd "nexdb/client/pkg/cmd/config/init"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config <command>",
		Aliases: []string{"c"},
		Short:   "Manage nexdb client configuration",
	}

	cmd.AddCommand(initcmd.NewConfigInitCmd(func(host, accessKey string) api.Pinger {
		return api.NewService(api.NewClient(api.Config{Host: host, AccessKey: accessKey}))
	}))
	return cmd
}
