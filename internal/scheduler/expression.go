package scheduler

import (
	"fmt"
	"github.com/robfig/cron/v3"
	"nexdb/internal/types"
	"strconv"
	"strings"
	"time"
)

var (
	parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// Expression builds the five field trigger expression of a schedule
func Expression(s *types.BackupSchedule) (string, error) {
	if s.Frequency == types.FrequencyCustom {
		expr := strings.Join(strings.Fields(s.Expression), " ")
		if expr == "" {
			return "", types.NewScheduleValidationError("expression", "required for custom frequency")
		}
		if err := Validate(expr); err != nil {
			return "", err
		}
		return expr, nil
	}

	if s.Hour < 0 || s.Hour > 23 {
		return "", types.NewScheduleValidationError("hour", "must be between 0 and 23")
	}
	if s.Minute < 0 || s.Minute > 59 {
		return "", types.NewScheduleValidationError("minute", "must be between 0 and 59")
	}

	switch s.Frequency {
	case types.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	case types.FrequencyWeekly:
		if s.DayOfWeek == nil {
			return "", types.NewScheduleValidationError("day_of_week", "required for weekly frequency")
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return "", types.NewScheduleValidationError("day_of_week", "must be between 0 and 6")
		}
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, *s.DayOfWeek), nil
	case types.FrequencyMonthly:
		if s.DayOfMonth == nil {
			return "", types.NewScheduleValidationError("day_of_month", "required for monthly frequency")
		}
		if *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return "", types.NewScheduleValidationError("day_of_month", "must be between 1 and 31")
		}
		return fmt.Sprintf("%d %d %d * *", s.Minute, s.Hour, *s.DayOfMonth), nil
	default:
		return "", types.NewScheduleValidationError("frequency", fmt.Sprintf("unknown frequency %q", s.Frequency))
	}
}

func Validate(expr string) error {
	if len(strings.Fields(expr)) != 5 {
		return types.NewScheduleValidationError("expression", "must have exactly 5 fields")
	}
	if _, err := parser.Parse(expr); err != nil {
		return types.NewScheduleValidationError("expression", err.Error())
	}
	return nil
}

// NextRun returns the first fire time of expr strictly after from, in from's location
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, types.NewScheduleValidationError("expression", err.Error())
	}

	next := sched.Next(from)
	if next.IsZero() {
		return time.Time{}, types.NewScheduleValidationError("expression", "never fires")
	}
	return next, nil
}

// Describe renders expr for listings, falling back to the raw expression for anything non trivial
func Describe(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}

	minute, errM := strconv.Atoi(fields[0])
	hour, errH := strconv.Atoi(fields[1])
	if errM != nil || errH != nil || fields[3] != "*" {
		return "custom (" + expr + ")"
	}
	at := fmt.Sprintf("%02d:%02d", hour, minute)

	dom, dow := fields[2], fields[4]
	switch {
	case dom == "*" && dow == "*":
		return "every day at " + at
	case dom == "*":
		if d, err := strconv.Atoi(dow); err == nil && d >= 0 && d <= 6 {
			return fmt.Sprintf("every %s at %s", weekdays[d], at)
		}
	case dow == "*":
		if d, err := strconv.Atoi(dom); err == nil {
			return fmt.Sprintf("day %d of every month at %s", d, at)
		}
	}
	return "custom (" + expr + ")"
}
