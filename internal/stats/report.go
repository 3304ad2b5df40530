package stats

import (
	"context"
	"errors"

	"github.com/verte-zerg/tuimind/internal/model"
	"github.com/verte-zerg/tuimind/internal/store"
)

// Source is the read side of the store used for reporting.
type Source interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
	ListInventory(ctx context.Context) ([]model.InventoryItem, error)
	GetLevel(ctx context.Context, mode model.Mode) (int, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions  []model.SessionAggregate
	Summaries []ModeSummary
	Inventory []model.InventoryItem
	// Levels holds the stored level of each mode that has one.
	Levels      map[model.Mode]int
	CurveWindow int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src Source, cfg model.StatsConfig) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	inventory, err := src.ListInventory(ctx)
	if err != nil {
		return Report{}, err
	}
	levels := map[model.Mode]int{}
	for _, mode := range model.Modes() {
		level, err := src.GetLevel(ctx, mode)
		if errors.Is(err, store.ErrNoLevel) {
			continue
		}
		if err != nil {
			return Report{}, err
		}
		levels[mode] = level
	}
	return Report{
		Sessions:    sessions,
		Summaries:   Summarize(sessions),
		Inventory:   inventory,
		Levels:      levels,
		CurveWindow: cfg.CurveWindow,
	}, nil
}
