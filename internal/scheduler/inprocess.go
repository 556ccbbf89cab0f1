package scheduler

import (
	"context"
	"errors"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	errors2 "github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/types"
	"nexdb/logger"
	"sync"
	"time"
)

// InProcess owns schedule triggers inside the server process with a gocron scheduler
type InProcess struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	action    Action
	location  *time.Location
	entries   map[uuid.UUID]Target
	ctx       context.Context
}

func NewInProcess(loc *time.Location, concurrentJobs uint, action Action) (*InProcess, error) {
	if loc == nil {
		loc = time.UTC
	}
	if concurrentJobs == 0 {
		concurrentJobs = 1
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLimitConcurrentJobs(concurrentJobs, gocron.LimitModeWait))
	if err != nil {
		return nil, err
	}
	return &InProcess{
		scheduler: s,
		action:    action,
		location:  loc,
		entries:   make(map[uuid.UUID]Target),
		ctx:       context.Background(),
	}, nil
}

// Start begins firing triggers; ctx is handed to every backup the scheduler starts
func (p *InProcess) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	p.scheduler.Start()
}

func (p *InProcess) Shutdown() error {
	return p.scheduler.Shutdown()
}

func (p *InProcess) Materialize(ctx context.Context, t Target) (*Entry, error) {
	if err := Validate(t.Expression); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.remove(t.ScheduleID); err != nil {
		return nil, err
	}

	job, err := p.scheduler.NewJob(
		gocron.CronJob(t.Expression, false),
		gocron.NewTask(p.run, p.ctx, t.ScheduleID),
		gocron.WithIdentifier(t.ScheduleID),
		gocron.WithName(t.Database),
		gocron.WithTags(t.Engine.String(), t.Database),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return nil, errors2.Wrap(err, "failed to schedule backup job")
	}
	p.entries[t.ScheduleID] = t

	logger.Info("backup job scheduled",
		zap.String("schedule", job.ID().String()),
		zap.String("database", t.Database),
		zap.String("expression", t.Expression))

	entry := t.entry(p.location)
	return &entry, nil
}

func (p *InProcess) Dematerialize(_ context.Context, scheduleID uuid.UUID) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[scheduleID]; !ok {
		return 0, nil
	}

	if err := p.remove(scheduleID); err != nil {
		return 0, err
	}
	logger.Info("backup job removed", zap.String("schedule", scheduleID.String()))
	return 1, nil
}

func (p *InProcess) ListMaterialized(_ context.Context) ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]Entry, 0, len(p.entries))
	for _, t := range p.entries {
		result = append(result, t.entry(p.location))
	}
	sortEntries(result)
	return result, nil
}

// RunNow fires the trigger of a schedule immediately without changing its next run
func (p *InProcess) RunNow(scheduleID uuid.UUID) error {
	for _, job := range p.scheduler.Jobs() {
		if job.ID() == scheduleID {
			return job.RunNow()
		}
	}
	return types.NewNotFoundError("scheduled job", scheduleID)
}

func (p *InProcess) remove(scheduleID uuid.UUID) error {
	err := p.scheduler.RemoveJob(scheduleID)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}
	delete(p.entries, scheduleID)
	return nil
}

func (p *InProcess) run(ctx context.Context, scheduleID uuid.UUID) {
	logger.Info("backup schedule fired", zap.String("schedule", scheduleID.String()))
	if err := p.action(ctx, scheduleID); err != nil {
		logger.Error("scheduled backup failed",
			zap.String("schedule", scheduleID.String()),
			zap.Error(err))
	}
}
