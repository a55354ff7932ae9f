package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no stored data matches a query.
var ErrNotFound = errors.New("no weather data found")

// Explorer is the read side used by the dashboard and the plot.
type Explorer struct {
	conditions ConditionReader
	health     HealthReader
}

// NewExplorer creates a new Explorer.
func NewExplorer(conditions ConditionReader, health HealthReader) *Explorer {
	return &Explorer{conditions: conditions, health: health}
}

// Latest returns the newest stored row for a category.
func (e *Explorer) Latest(ctx context.Context, c Category) (Row, error) {
	row, found, err := e.conditions.LatestConditions(ctx, c.Table())
	if err != nil {
		return Row{}, fmt.Errorf("latest %s conditions: %w", c, err)
	}
	if !found {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// History returns rows for a category between from and to (inclusive), newest first.
func (e *Explorer) History(ctx context.Context, c Category, from, to time.Time, limit int) ([]Row, error) {
	rows, err := e.conditions.Conditions(ctx, c.Table(), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("%s history: %w", c, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// RecentHealth returns the newest HealthSummaries.
func (e *Explorer) RecentHealth(ctx context.Context, limit int) ([]HealthSummary, error) {
	return e.health.RecentHealth(ctx, limit)
}
