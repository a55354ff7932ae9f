package weather

import (
	"context"
	"time"
)

// Fetcher abstracts the station API (e.g. WeatherLink v2 current conditions).
type Fetcher interface {
	Fetch(ctx context.Context) (Document, error)
}

// Tables is the schema and row access a cycle needs for one category table.
type Tables interface {
	// Columns returns the column names currently defined for table.
	Columns(ctx context.Context, table string) ([]string, error)
	AddColumn(ctx context.Context, table, column string, kind ColumnKind) error
	// LatestRow returns the newest row projected onto columns, in that order.
	// found is false when the table has no rows.
	LatestRow(ctx context.Context, table string, columns []string) (values []any, found bool, err error)
	InsertRow(ctx context.Context, table string, ts time.Time, columns []string, values []any) error
}

// Session is a unit of work over Tables committed once per cycle.
type Session interface {
	Tables
	Commit() error
	Rollback() error
}

// Database opens the data-path Session for a cycle.
type Database interface {
	Begin(ctx context.Context) (Session, error)
}

// HealthRecorder persists a cycle's HealthSummary independently of the data path.
type HealthRecorder interface {
	RecordHealth(ctx context.Context, summary HealthSummary) error
}

// HealthReader lists recorded summaries, newest first.
type HealthReader interface {
	RecentHealth(ctx context.Context, limit int) ([]HealthSummary, error)
}

// ConditionReader reads stored category rows.
type ConditionReader interface {
	LatestConditions(ctx context.Context, table string) (Row, bool, error)
	// Conditions returns rows with from <= timestamp <= to, newest first, at most limit.
	Conditions(ctx context.Context, table string, from, to time.Time, limit int) ([]Row, error)
}

// Observer receives cycle events, e.g. for metrics.
type Observer interface {
	ColumnAdded(table, column string, kind ColumnKind)
	CycleFinished(summary HealthSummary, elapsed time.Duration)
}
