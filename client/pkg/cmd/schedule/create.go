package schedule

import (
	"fmt"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"nexdb/client/internal/api"
	"nexdb/client/internal/cmdutil"
	"nexdb/internal/types"
)

func newCreateCmd(factory cmdutil.ServiceFactory) *cobra.Command {
	var (
		database              string
		frequency             string
		dayOfWeek, dayOfMonth int
		retention             int
		disabled              bool
		params                api.ScheduleParams
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup schedule",
		Long: "Schedule backups of a database. Daily, weekly and monthly schedules run at --hour:--minute; " +
			"custom schedules take a five field cron expression.",
		Example: "nexdb schedule create --database-id <database_id> --frequency weekly --day-of-week 0 --hour 3\n" +
			"nexdb schedule create --database-id <database_id> --frequency custom --expression '*/30 * * * *'",
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID, err := cmdutil.ParseID("database", database)
			if err != nil {
				return err
			}
			params.DatabaseID = databaseID
			params.Frequency = types.Frequency(frequency)

			if cmd.Flags().Changed("day-of-week") {
				params.DayOfWeek = types.IntPtr(dayOfWeek)
			}
			if cmd.Flags().Changed("day-of-month") {
				params.DayOfMonth = types.IntPtr(dayOfMonth)
			}
			if cmd.Flags().Changed("retention") {
				params.RetentionCount = types.IntPtr(retention)
			}
			if disabled {
				enabled := false
				params.Enabled = &enabled
			}

			if err := cmdutil.Validate(params); err != nil {
				return err
			}

			if params.Frequency == types.FrequencyCustom {
				if err := validateExpression(params.Expression); err != nil {
					return err
				}
			}

			svc, err := factory()
			if err != nil {
				return err
			}

			ctx, cancel := cmdutil.Context(cmd)
			defer cancel()

			schedule, err := svc.CreateSchedule(ctx, params)
			if err != nil {
				return err
			}

			next := "-"
			if schedule.NextRunAt != nil {
				next = cmdutil.FormatTime(schedule.NextRunAt)
			}
			cmdutil.PrintS(fmt.Sprintf("schedule created! %s, next run %s", schedule.ID, next))
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database-id", "d", "", "ID of the database to back up")
	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(types.FrequencyDaily), "daily, weekly, monthly or custom")
	cmd.Flags().StringVarP(&params.Expression, "expression", "x", "", "Cron expression of a custom schedule")
	cmd.Flags().IntVar(&params.Hour, "hour", 0, "Hour of day the backup runs at")
	cmd.Flags().IntVar(&params.Minute, "minute", 0, "Minute of the hour the backup runs at")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "Day of week of a weekly schedule, 0 is Sunday")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "Day of month of a monthly schedule")
	cmd.Flags().IntVarP(&retention, "retention", "r", types.DefaultRetentionCount, "Number of scheduled backups to keep, 0 keeps all")
	cmd.Flags().BoolVarP(&params.UploadToRemote, "upload", "u", false, "Upload scheduled backups to remote storage")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule without enabling it")
	return cmd
}

func validateExpression(value string) error {
	if value == "" {
		return fmt.Errorf("custom schedules need an --expression")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(value); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", value, err)
	}
	return nil
}
