package scheduler

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nexdb/logger"
)

type Report struct {
	Installed int      `json:"installed"`
	Updated   int      `json:"updated"`
	Removed   int      `json:"removed"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
}

// Reconcile makes the installed triggers of m match targets exactly. Individual failures are
// collected and do not stop the remaining work.
func Reconcile(ctx context.Context, m Materializer, targets []Target) (Report, error) {
	report := Report{}
	installed, err := m.ListMaterialized(ctx)
	if err != nil {
		return report, err
	}

	wanted := make(map[uuid.UUID]Target, len(targets))
	for _, t := range targets {
		wanted[t.ScheduleID] = t
	}

	existing := make(map[uuid.UUID][]Entry)
	for _, e := range installed {
		existing[e.ScheduleID] = append(existing[e.ScheduleID], e)
	}

	// tagged triggers that no longer parse are still owned and must be replaced or removed
	if tl, ok := m.(TagLister); ok {
		ids, err := tl.ListTaggedIDs(ctx)
		if err != nil {
			return report, err
		}
		for _, id := range ids {
			if _, ok := existing[id]; !ok {
				existing[id] = nil
			}
		}
	}

	var errs []error
	fail := func(err error) {
		errs = append(errs, err)
		report.Errors = append(report.Errors, err.Error())
	}

	for id := range existing {
		if _, ok := wanted[id]; ok {
			continue
		}
		n, err := m.Dematerialize(ctx, id)
		if err != nil {
			fail(err)
			continue
		}
		report.Removed += n
	}

	for id, t := range wanted {
		entries, ok := existing[id]
		switch {
		case !ok:
			if _, err := m.Materialize(ctx, t); err != nil {
				fail(err)
				continue
			}
			report.Installed++
		case len(entries) != 1 || !entries[0].matches(t):
			if _, err := m.Materialize(ctx, t); err != nil {
				fail(err)
				continue
			}
			report.Updated++
		default:
			report.Unchanged++
		}
	}

	logger.Info("schedules reconciled",
		zap.Int("installed", report.Installed),
		zap.Int("updated", report.Updated),
		zap.Int("removed", report.Removed),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("errors", len(report.Errors)))
	return report, errors.Join(errs...)
}
