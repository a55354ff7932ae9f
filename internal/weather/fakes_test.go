package weather

import (
	"context"
	"errors"
	"strings"
	"time"
)

type fakeRow struct {
	ts     time.Time
	values map[string]any
}

type fakeTable struct {
	columns []string
	kinds   map[string]ColumnKind
	rows    []fakeRow
}

// fakeDB is a Database whose Session writes straight through. Failures are
// injected per table or column.
type fakeDB struct {
	tables map[string]*fakeTable

	columnsErr   map[string]error
	addColumnErr map[string]error // key: column
	latestErr    map[string]error
	insertErr    map[string]error
	beginErr     error
	commitErr    error
	insertPanic  bool

	begun      int
	committed  bool
	rolledBack bool
}

func newFakeDB() *fakeDB {
	db := &fakeDB{
		tables:       make(map[string]*fakeTable),
		columnsErr:   make(map[string]error),
		addColumnErr: make(map[string]error),
		latestErr:    make(map[string]error),
		insertErr:    make(map[string]error),
	}
	for _, c := range Categories() {
		db.tables[c.Table()] = &fakeTable{
			columns: []string{"id", TimestampColumn},
			kinds:   make(map[string]ColumnKind),
		}
	}
	return db
}

func (f *fakeDB) Begin(context.Context) (Session, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun++
	return f, nil
}

func (f *fakeDB) Columns(_ context.Context, table string) ([]string, error) {
	if err := f.columnsErr[table]; err != nil {
		return nil, err
	}
	t, ok := f.tables[table]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), t.columns...), nil
}

func (f *fakeDB) AddColumn(_ context.Context, table, column string, kind ColumnKind) error {
	if err := f.addColumnErr[column]; err != nil {
		return err
	}
	t := f.tables[table]
	for _, c := range t.columns {
		if strings.EqualFold(c, column) {
			return errors.New("duplicate column name: " + column)
		}
	}
	t.columns = append(t.columns, column)
	t.kinds[column] = kind
	return nil
}

func (f *fakeDB) LatestRow(_ context.Context, table string, columns []string) ([]any, bool, error) {
	if err := f.latestErr[table]; err != nil {
		return nil, false, err
	}
	t := f.tables[table]
	if len(t.rows) == 0 {
		return nil, false, nil
	}
	last := t.rows[0]
	for _, r := range t.rows[1:] {
		if !r.ts.Before(last.ts) {
			last = r
		}
	}
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = last.values[c]
	}
	return out, true, nil
}

func (f *fakeDB) InsertRow(_ context.Context, table string, ts time.Time, columns []string, values []any) error {
	if f.insertPanic {
		panic("driver exploded")
	}
	if err := f.insertErr[table]; err != nil {
		return err
	}
	row := fakeRow{ts: ts, values: make(map[string]any, len(columns))}
	for i, c := range columns {
		row.values[c] = values[i]
	}
	f.tables[table].rows = append(f.tables[table].rows, row)
	return nil
}

func (f *fakeDB) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeDB) Rollback() error {
	f.rolledBack = true
	return nil
}

func (f *fakeDB) rowCount(c Category) int {
	return len(f.tables[c.Table()].rows)
}

type fakeFetcher struct {
	doc   Document
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context) (Document, error) {
	f.calls++
	return f.doc, f.err
}

type fakeHealth struct {
	summaries []HealthSummary
	err       error
	deadline  bool
}

func (f *fakeHealth) RecordHealth(ctx context.Context, s HealthSummary) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, s)
	return nil
}

type fakeObserver struct {
	added    []string
	finished []HealthSummary
}

func (o *fakeObserver) ColumnAdded(table, column string, _ ColumnKind) {
	o.added = append(o.added, table+"."+column)
}

func (o *fakeObserver) CycleFinished(s HealthSummary, _ time.Duration) {
	o.finished = append(o.finished, s)
}
