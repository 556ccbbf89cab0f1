package scheduler

import (
	"context"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"nexdb/internal/types"
	"sort"
	"time"
)

const Tag = "nexdb backup schedule"

type (
	// Target is everything a trigger needs to start one scheduled backup
	Target struct {
		ScheduleID uuid.UUID
		DatabaseID uuid.UUID
		Engine     types.Engine
		Database   string
		Expression string
		Upload     bool
	}

	Entry struct {
		ScheduleID uuid.UUID    `json:"schedule_id"`
		DatabaseID uuid.UUID    `json:"database_id"`
		Engine     types.Engine `json:"engine"`
		Database   string       `json:"database"`
		Expression string       `json:"expression"`
		Upload     bool         `json:"upload"`
		NextRun    time.Time    `json:"next_run"`
	}

	Materializer interface {
		// Materialize installs the trigger of t, replacing any existing trigger of the same schedule
		Materialize(ctx context.Context, t Target) (*Entry, error)
		// Dematerialize removes every trigger of the schedule and reports how many were removed
		Dematerialize(ctx context.Context, scheduleID uuid.UUID) (int, error)
		ListMaterialized(ctx context.Context) ([]Entry, error)
	}

	// TagLister reports the schedule of every installed trigger, including triggers whose
	// other fields no longer parse
	TagLister interface {
		ListTaggedIDs(ctx context.Context) ([]uuid.UUID, error)
	}

	// Action runs the backup of a schedule when its trigger fires
	Action func(ctx context.Context, scheduleID uuid.UUID) error
)

// TargetFor requires the schedule's database and server to be loaded
func TargetFor(s *types.BackupSchedule) (Target, error) {
	if s.Database == nil || s.Database.Server == nil {
		return Target{}, errors.Errorf("schedule %s has no resolved database", s.ID)
	}

	expr, err := Expression(s)
	if err != nil {
		return Target{}, err
	}

	return Target{
		ScheduleID: s.ID,
		DatabaseID: s.DatabaseID,
		Engine:     s.Database.Server.Engine,
		Database:   s.Database.Name,
		Expression: expr,
		Upload:     s.UploadToRemote,
	}, nil
}

func (t Target) entry(loc *time.Location) Entry {
	e := Entry{
		ScheduleID: t.ScheduleID,
		DatabaseID: t.DatabaseID,
		Engine:     t.Engine,
		Database:   t.Database,
		Expression: t.Expression,
		Upload:     t.Upload,
	}
	if next, err := NextRun(t.Expression, time.Now().In(loc)); err == nil {
		e.NextRun = next
	}
	return e
}

func (e Entry) matches(t Target) bool {
	return e.Expression == t.Expression &&
		e.Engine == t.Engine &&
		e.Database == t.Database &&
		e.DatabaseID == t.DatabaseID &&
		e.Upload == t.Upload
}

// sortEntries orders by next fire time, entries that never fire last
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].NextRun, entries[j].NextRun
		switch {
		case a.IsZero() != b.IsZero():
			return b.IsZero()
		case !a.Equal(b):
			return a.Before(b)
		default:
			return entries[i].ScheduleID.String() < entries[j].ScheduleID.String()
		}
	})
}
