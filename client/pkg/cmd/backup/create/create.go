package create

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
	"nexdb/internal/types"
)

// NewCreateBackupCmd runs a single backup and waits for it. It is also the command the
// crontab scheduler installs, so a failed backup exits non-zero.
func NewCreateBackupCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		databaseID, scheduleID string
		engine, database       string
		upload                 bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Back up a database now",
		Long: "Back up a database now. The database is selected by --database-id, or by --database " +
			"(and --engine when the name exists on several servers).",
		Example: "nexdb backup create --database shop --engine mysql --upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			params := api.CreateBackupParams{
				Upload:    upload,
				CreatedBy: "cli",
			}

			if scheduleID != "" {
				id, err := cmdutil.ParseID("schedule", scheduleID)
				if err != nil {
					return err
				}
				params.ScheduleID = id
				params.CreatedBy = "crontab"
			}

			if databaseID != "" {
				params.DatabaseID, err = cmdutil.ParseID("database", databaseID)
			} else {
				params.DatabaseID, err = resolveDatabase(ctx, svc, database, engine)
			}
			if err != nil {
				return err
			}

			cmdutil.StartLoading("Backing up...")
			result, err := svc.CreateBackup(ctx, params)
			cmdutil.StopLoading()
			if err != nil {
				if result.Record != nil {
					return fmt.Errorf("backup %s failed: %w", result.Record.ID, err)
				}
				return err
			}

			if result.UploadError != "" {
				cmdutil.PrintW("upload failed: " + result.UploadError)
			}

			record := result.Record
			cmdutil.PrintS(fmt.Sprintf("backup completed! %s (%s, %s)",
				record.ID, record.Filename, cmdutil.HumanSize(record.SizeBytes)))
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseID, "database-id", "", "ID of the database to back up")
	cmd.Flags().StringVarP(&database, "database", "d", "", "Name of the database to back up")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Engine of the database: mysql or postgresql")
	cmd.Flags().StringVar(&scheduleID, "schedule-id", "", "Schedule this backup runs for")
	cmd.Flags().BoolVarP(&upload, "upload", "u", false, "Upload the backup to remote storage")
	return cmd
}

func resolveDatabase(ctx context.Context, svc api.Service, name, engine string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, fmt.Errorf("please specify --database-id or --database")
	}

	var want types.Engine
	if engine != "" {
		e, err := types.ParseEngine(engine)
		if err != nil {
			return uuid.Nil, err
		}
		want = e
	}

	databases, err := svc.ListDatabases(ctx, uuid.Nil)
	if err != nil {
		return uuid.Nil, err
	}

	matches := lo.Filter(databases, func(db api.Database, _ int) bool {
		if db.Name != name {
			return false
		}
		return want == "" || (db.Server != nil && db.Server.Engine == want)
	})

	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("database %q not found", name)
	case 1:
		return matches[0].ID, nil
	default:
		return uuid.Nil, fmt.Errorf("database %q exists on %d servers, use --database-id", name, len(matches))
	}
}
