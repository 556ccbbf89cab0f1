package servers

import (
	"fmt"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
)

var engines = []string{"mysql", "postgresql"}

func newAddCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		params  api.RegisterServerParams
		project string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a database server",
		Long: "Register a database server. The server password is read from " + cmdutil.EnvServerSecret +
			" or prompted for, and the connection is tested before the server is saved.",
		Example: "nexdb servers add --name primary --engine mysql --host 10.0.0.5 --username backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project != "" {
				projectID, err := cmdutil.ParseID("project", project)
				if err != nil {
					return err
				}
				params.ProjectID = projectID
			}

			if params.Engine == "" {
				engine, err := selectEngine()
				if err != nil {
					return err
				}
				params.Engine = engine
			}

			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			secret, err := cmdutil.ReadSecret(cmdutil.EnvServerSecret, fmt.Sprintf("Password for %s@%s", params.Username, params.Host))
			if err != nil {
				return err
			}
			params.Secret = secret

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			cmdutil.StartLoading("Testing connection...")
			server, err := svc.RegisterServer(ctx, params)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			cmdutil.PrintS("server registered! " + server.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Name, "name", "n", "", "Name of the server")
	cmd.Flags().StringVarP(&params.Engine, "engine", "e", "", "Database engine: mysql or postgresql")
	cmd.Flags().StringVarP(&params.Host, "host", "H", "", "Host name or IP address of the server")
	cmd.Flags().IntVarP(&params.Port, "port", "p", 0, "Port of the server, the engine default when omitted")
	cmd.Flags().StringVarP(&params.Username, "username", "u", "", "User the dumps run as")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Free text description")
	cmd.Flags().StringVar(&project, "project", "", "ID of the project the server belongs to")
	cmd.Flags().BoolVar(&params.SkipConnectionTest, "skip-test", false, "Register the server without testing the connection")
	return cmd
}

func selectEngine() (string, error) {
	prompt := promptui.Select{
		Label: "Select the database engine",
		Items: engines,
	}
	_, engine, err := prompt.Run()
	return engine, err
}
