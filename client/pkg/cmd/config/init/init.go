package initcmd

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"net/url"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
	"nexdb/client/internal/config"
	"strings"
)

type PingerFactory func(host, accessKey string) api.Pinger

func NewConfigInitCmd(newPinger PingerFactory) *cobra.Command {
	var host, accessKey string
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Set nexdb configuration",
		Long:    "Point the client at a nexdb server. The connection and access key are tested before anything is saved.",
		Example: "nexdb config init --host https://backups.example.com --access-key <key>",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverUrl, err := normalizeHost(host)
			if err != nil {
				return err
			}

			cmdutil.StartLoading("Running test...")
			err = newPinger(serverUrl, accessKey).Ping(cmd.Context())
			cmdutil.StopLoading()
			if err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}

			inKeyring, err := config.Save(config.Config{Host: serverUrl, AccessKey: accessKey})
			if err != nil {
				return err
			}

			if !inKeyring {
				cmdutil.PrintW("system keyring unavailable, access key stored in the configuration file")
			}
			cmdutil.Print(fmt.Sprintf("\n%s: Configuration set successfully", color.GreenString("Test passed")))
			return nil
		},
	}
	cmd.Flags().StringVarP(&host, "host", "i", "", "nexdb server host url")
	cmd.Flags().StringVarP(&accessKey, "access-key", "a", "", "nexdb server access key")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func normalizeHost(host string) (string, error) {
	uri, err := url.Parse(strings.TrimSpace(host))
	if err != nil {
		return "", err
	}

	if uri.Scheme != "http" && uri.Scheme != "https" {
		return "", fmt.Errorf("invalid host %q: scheme must be http or https", host)
	}

	if uri.Host == "" {
		return "", fmt.Errorf("invalid host %q", host)
	}

	uri.Path = strings.TrimSuffix(uri.Path, "/")
	return uri.String(), nil
}
