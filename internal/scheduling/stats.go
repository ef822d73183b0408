package scheduling

import (
	"context"

	"go.uber.org/zap"

	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/store"
)

// Overview summarizes slots by status. Total always equals the sum of the
// per-status counts.
type Overview struct {
	Total     int64
	Scheduled int64
	Completed int64
	Cancelled int64
	ByStatus  map[model.SlotStatus]int64
}

// StatsAggregator computes dashboard counters.
type StatsAggregator struct {
	store  store.Store
	logger *zap.Logger
}

func NewStatsAggregator(s store.Store, logger *zap.Logger) *StatsAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsAggregator{store: s, logger: logger.Named("stats")}
}

// Overview counts every slot row, including cancelled ones, in a single
// grouped query.
func (a *StatsAggregator) Overview(ctx context.Context) (*Overview, error) {
	rows, err := a.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	ov := &Overview{ByStatus: make(map[model.SlotStatus]int64, len(model.SlotStatuses))}
	for _, s := range model.SlotStatuses {
		ov.ByStatus[s] = 0
	}
	for _, row := range rows {
		if _, known := ov.ByStatus[row.Status]; !known {
			a.logger.Warn("ignoring slots with unknown status",
				zap.String("status", string(row.Status)), zap.Int64("count", row.Count))
			continue
		}
		ov.ByStatus[row.Status] = row.Count
		ov.Total += row.Count
	}
	ov.Scheduled = ov.ByStatus[model.SlotStatusScheduled]
	ov.Completed = ov.ByStatus[model.SlotStatusCompleted]
	ov.Cancelled = ov.ByStatus[model.SlotStatusCancelled]
	return ov, nil
}
