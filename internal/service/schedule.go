package service

import (
	"context"
	"errors"
	"github.com/google/uuid"
	errors2 "github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/database"
	"nexdb/internal/scheduler"
	"nexdb/internal/types"
	"nexdb/logger"
	"time"
)

type (
	ScheduleService interface {
		Create(ctx context.Context, params types.ScheduleParams) (*types.BackupSchedule, error)
		Update(ctx context.Context, id uuid.UUID, params types.ScheduleParams) (*types.BackupSchedule, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteForDatabase(ctx context.Context, databaseID uuid.UUID) error
		Get(ctx context.Context, id uuid.UUID) (*types.BackupSchedule, error)
		List(ctx context.Context) ([]*types.BackupSchedule, error)
		ListMaterialized(ctx context.Context) ([]scheduler.Entry, error)
		Reconcile(ctx context.Context) (scheduler.Report, error)
	}

	scheduleService struct {
		repository   database.ScheduleRepository
		databases    database.DatabaseRepository
		materializer scheduler.Materializer
		location     *time.Location
	}
)

func NewScheduleService(repo database.ScheduleRepository, databases database.DatabaseRepository,
	m scheduler.Materializer, loc *time.Location) ScheduleService {
	if loc == nil {
		loc = time.UTC
	}
	return &scheduleService{
		repository:   repo,
		databases:    databases,
		materializer: m,
		location:     loc,
	}
}

func (s *scheduleService) Create(ctx context.Context, params types.ScheduleParams) (*types.BackupSchedule, error) {
	schedule := &types.BackupSchedule{
		ID:             uuid.New(),
		RetentionCount: types.DefaultRetentionCount,
		Enabled:        true,
		CreatedAt:      time.Now(),
	}
	if err := s.apply(ctx, schedule, params); err != nil {
		return nil, err
	}

	if err := s.repository.Save(ctx, schedule); err != nil {
		return nil, err
	}

	if err := s.sync(ctx, schedule); err != nil {
		_ = s.repository.Delete(ctx, schedule.ID)
		return nil, err
	}

	logger.Info("backup schedule created",
		zap.String("id", schedule.ID.String()),
		zap.String("database", schedule.DatabaseID.String()),
		zap.String("frequency", string(schedule.Frequency)))
	return s.decorate(schedule), nil
}

func (s *scheduleService) Update(ctx context.Context, id uuid.UUID, params types.ScheduleParams) (*types.BackupSchedule, error) {
	schedule, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.DatabaseID == uuid.Nil {
		params.DatabaseID = schedule.DatabaseID
	}
	previous := *schedule
	previous.Database = nil
	if err := s.apply(ctx, schedule, params); err != nil {
		return nil, err
	}

	if err := s.repository.Save(ctx, schedule); err != nil {
		return nil, err
	}

	// the installed trigger still matches the previous row
	if err := s.sync(ctx, schedule); err != nil {
		if restoreErr := s.repository.Save(ctx, &previous); restoreErr != nil {
			logger.Error("failed to restore schedule",
				zap.String("id", previous.ID.String()),
				zap.Error(restoreErr))
		}
		return nil, err
	}
	return s.decorate(schedule), nil
}

func (s *scheduleService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repository.FindByID(ctx, id); err != nil {
		return err
	}

	if _, err := s.materializer.Dematerialize(ctx, id); err != nil {
		return errors2.Wrap(err, "failed to remove schedule trigger")
	}
	return s.repository.Delete(ctx, id)
}

func (s *scheduleService) DeleteForDatabase(ctx context.Context, databaseID uuid.UUID) error {
	schedules, err := s.repository.FindByDatabaseID(ctx, databaseID)
	if err != nil {
		return err
	}

	for _, schedule := range schedules {
		if err := s.Delete(ctx, schedule.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *scheduleService) Get(ctx context.Context, id uuid.UUID) (*types.BackupSchedule, error) {
	schedule, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(schedule), nil
}

func (s *scheduleService) List(ctx context.Context) ([]*types.BackupSchedule, error) {
	schedules, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, schedule := range schedules {
		s.decorate(schedule)
	}
	return schedules, nil
}

func (s *scheduleService) ListMaterialized(ctx context.Context) ([]scheduler.Entry, error) {
	return s.materializer.ListMaterialized(ctx)
}

// Reconcile brings the installed triggers in line with the enabled schedules
func (s *scheduleService) Reconcile(ctx context.Context) (scheduler.Report, error) {
	schedules, err := s.repository.FindEnabled(ctx)
	if err != nil {
		return scheduler.Report{}, err
	}

	targets := make([]scheduler.Target, 0, len(schedules))
	var skipped []error
	for _, schedule := range schedules {
		target, err := scheduler.TargetFor(schedule)
		if err != nil {
			logger.Warn("skipping schedule during reconciliation",
				zap.String("schedule", schedule.ID.String()),
				zap.Error(err))
			skipped = append(skipped, err)
			continue
		}
		targets = append(targets, target)
	}

	report, err := scheduler.Reconcile(ctx, s.materializer, targets)
	for _, e := range skipped {
		report.Errors = append(report.Errors, e.Error())
	}
	return report, errors.Join(append(skipped, err)...)
}

// apply validates params and copies them onto schedule, dropping fields the frequency does not use
func (s *scheduleService) apply(ctx context.Context, schedule *types.BackupSchedule, params types.ScheduleParams) error {
	if err := validateParams(params); err != nil {
		return err
	}

	if _, err := s.databases.FindByID(ctx, params.DatabaseID); err != nil {
		return err
	}

	candidate := *schedule
	candidate.DatabaseID = params.DatabaseID
	candidate.Frequency = params.Frequency
	candidate.Hour = params.Hour
	candidate.Minute = params.Minute
	candidate.UploadToRemote = params.UploadToRemote
	candidate.DayOfWeek, candidate.DayOfMonth, candidate.Expression = nil, nil, ""
	switch params.Frequency {
	case types.FrequencyWeekly:
		candidate.DayOfWeek = params.DayOfWeek
	case types.FrequencyMonthly:
		candidate.DayOfMonth = params.DayOfMonth
	case types.FrequencyCustom:
		candidate.Expression = params.Expression
		candidate.Hour, candidate.Minute = 0, 0
	}
	if params.RetentionCount != nil {
		candidate.RetentionCount = *params.RetentionCount
	}
	if params.Enabled != nil {
		candidate.Enabled = *params.Enabled
	}

	if _, err := scheduler.Expression(&candidate); err != nil {
		return err
	}

	candidate.Database = nil
	*schedule = candidate
	return nil
}

func (s *scheduleService) sync(ctx context.Context, schedule *types.BackupSchedule) error {
	if !schedule.Enabled {
		_, err := s.materializer.Dematerialize(ctx, schedule.ID)
		return err
	}

	loaded, err := s.repository.FindByID(ctx, schedule.ID)
	if err != nil {
		return err
	}

	target, err := scheduler.TargetFor(loaded)
	if err != nil {
		return err
	}

	if _, err := s.materializer.Materialize(ctx, target); err != nil {
		return errors2.Wrap(err, "failed to install schedule trigger")
	}
	schedule.Database = loaded.Database
	return nil
}

func (s *scheduleService) decorate(schedule *types.BackupSchedule) *types.BackupSchedule {
	expr, err := scheduler.Expression(schedule)
	if err != nil {
		return schedule
	}

	schedule.Description = scheduler.Describe(expr)
	if !schedule.Enabled {
		schedule.NextRunAt = nil
		return schedule
	}
	if next, err := scheduler.NextRun(expr, time.Now().In(s.location)); err == nil {
		schedule.NextRunAt = &next
	}
	return schedule
}
