package projects

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
)

func NewProjectsCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects <command>",
		Aliases: []string{"p"},
		Short:   "Manage projects",
		Long:    "Projects group database servers. Deleting a project keeps its servers.",
	}

	cmd.AddCommand(newCreateCmd(factory))
	cmd.AddCommand(newListCmd(factory))
	cmd.AddCommand(newUpdateCmd(factory))
	cmd.AddCommand(newDeleteCmd(factory))
	return cmd
}

func newCreateCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var params api.CreateProjectParams

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a project",
		Example: "nexdb projects create --name shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			project, err := svc.CreateProject(ctx, params)
			if err != nil {
				return err
			}

			cmdutil.PrintS("project created! " + project.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Name, "name", "n", "", "Name of the project")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Free text description")
	return cmd
}

func newListCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			projects, err := svc.ListProjects(ctx)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(projects))
			for _, next := range projects {
				rows = append(rows, table.Row{next.ID.String(), next.Name, next.Description, next.CreatedAt.Format("02-01-2006")})
			}

			cmdutil.Print("")
			cmdutil.Print(cmdutil.RenderTable(table.Row{"ID", "Name", "Description", "Time Created"}, rows))
			return nil
		},
	}
}

func newUpdateCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		id                string
		name, description string
	)

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Rename a project or change its description",
		Example: "nexdb projects update --id <project_id> --name shop-eu",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := cmdutil.ParseID("project", id)
			if err != nil {
				return err
			}

			var params api.UpdateProjectParams
			if cmd.Flags().Changed("name") {
				params.Name = &name
			}
			if cmd.Flags().Changed("description") {
				params.Description = &description
			}
			if params.Name == nil && params.Description == nil {
				return cmdutil.ErrNothingToUpdate
			}
			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			project, err := svc.UpdateProject(ctx, projectID, params)
			if err != nil {
				return err
			}

			cmdutil.PrintS("project updated! " + project.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the project")
	cmd.Flags().StringVarP(&name, "name", "n", "", "New name of the project")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	return cmd
}

func newDeleteCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		id    string
		force bool
	)

	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a project",
		Long:    "Delete a project. Its servers stay registered without a project.",
		Example: "nexdb projects delete --id <project_id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := cmdutil.ParseID("project", id)
			if err != nil {
				return err
			}

			if !force && !cmdutil.Confirm("Delete project "+projectID.String()) {
				return nil
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			if err := svc.DeleteProject(ctx, projectID); err != nil {
				return err
			}

			cmdutil.PrintS("project deleted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the project")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}
