package scheduler

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexdb/internal/types"
	"testing"
	"time"
)

func TestExpression(t *testing.T) {
	tests := []struct {
		name     string
		schedule types.BackupSchedule
		want     string
		field    string
	}{
		{
			name:     "daily",
			schedule: types.BackupSchedule{Frequency: types.FrequencyDaily, Hour: 2, Minute: 30},
			want:     "30 2 * * *",
		},
		{
			name:     "weekly sunday midnight",
			schedule: types.BackupSchedule{Frequency: types.FrequencyWeekly, DayOfWeek: types.IntPtr(0)},
			want:     "0 0 * * 0",
		},
		{
			name:     "monthly",
			schedule: types.BackupSchedule{Frequency: types.FrequencyMonthly, DayOfMonth: types.IntPtr(1), Hour: 3, Minute: 15},
			want:     "15 3 1 * *",
		},
		{
			name:     "custom",
			schedule: types.BackupSchedule{Frequency: types.FrequencyCustom, Expression: " */15  *  * * 1-5 "},
			want:     "*/15 * * * 1-5",
		},
		{
			name:     "weekly without day",
			schedule: types.BackupSchedule{Frequency: types.FrequencyWeekly},
			field:    "day_of_week",
		},
		{
			name:     "weekly day out of range",
			schedule: types.BackupSchedule{Frequency: types.FrequencyWeekly, DayOfWeek: types.IntPtr(7)},
			field:    "day_of_week",
		},
		{
			name:     "monthly without day",
			schedule: types.BackupSchedule{Frequency: types.FrequencyMonthly},
			field:    "day_of_month",
		},
		{
			name:     "monthly day zero",
			schedule: types.BackupSchedule{Frequency: types.FrequencyMonthly, DayOfMonth: types.IntPtr(0)},
			field:    "day_of_month",
		},
		{
			name:     "hour out of range",
			schedule: types.BackupSchedule{Frequency: types.FrequencyDaily, Hour: 24},
			field:    "hour",
		},
		{
			name:     "minute out of range",
			schedule: types.BackupSchedule{Frequency: types.FrequencyDaily, Minute: -1},
			field:    "minute",
		},
		{
			name:     "custom without expression",
			schedule: types.BackupSchedule{Frequency: types.FrequencyCustom},
			field:    "expression",
		},
		{
			name:     "custom with seconds field",
			schedule: types.BackupSchedule{Frequency: types.FrequencyCustom, Expression: "0 0 1 * * *"},
			field:    "expression",
		},
		{
			name:     "custom garbage",
			schedule: types.BackupSchedule{Frequency: types.FrequencyCustom, Expression: "a b c d e"},
			field:    "expression",
		},
		{
			name:     "unknown frequency",
			schedule: types.BackupSchedule{Frequency: "hourly"},
			field:    "frequency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expression(&tt.schedule)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var verr *types.ScheduleValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) // a Wednesday

	next, err := NextRun("30 2 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 11, 2, 30, 0, 0, time.UTC), next)

	next, err = NextRun("0 0 * * 0", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC), next)

	next, err = NextRun("15 3 1 * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 3, 15, 0, 0, time.UTC), next)

	_, err = NextRun("not a cron", from)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "every day at 02:30", Describe("30 2 * * *"))
	assert.Equal(t, "every Sunday at 00:00", Describe("0 0 * * 0"))
	assert.Equal(t, "day 1 of every month at 03:15", Describe("15 3 1 * *"))
	assert.Equal(t, "custom (*/5 * * * *)", Describe("*/5 * * * *"))
	assert.Equal(t, "custom (0 0 1 1 *)", Describe("0 0 1 1 *"))
}
