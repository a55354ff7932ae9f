package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

type memRow struct {
	id     int64
	ts     time.Time
	values map[string]any
}

type memTable struct {
	columns []string
	rows    []memRow
}

func (t *memTable) hasColumn(name string) bool {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// MemoryStore is a concurrency-safe in-memory implementation of the storage
// capabilities. It starts with the same empty category tables the migrations
// create.
type MemoryStore struct {
	mu sync.RWMutex

	// key: table name
	tables map[string]*memTable
	health []weather.HealthSummary
	nextID int64

	// max rows kept per table (and of health summaries)
	maxRows int
}

var (
	_ weather.Database        = (*MemoryStore)(nil)
	_ weather.ConditionReader = (*MemoryStore)(nil)
	_ weather.HealthRecorder  = (*MemoryStore)(nil)
	_ weather.HealthReader    = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new MemoryStore.
// If maxRows is <= 0, it is treated as unlimited.
func NewMemoryStore(maxRows int) *MemoryStore {
	s := &MemoryStore{
		tables:  make(map[string]*memTable),
		maxRows: maxRows,
	}
	for _, c := range weather.Categories() {
		s.tables[c.Table()] = &memTable{columns: []string{"id", weather.TimestampColumn}}
	}
	return s
}

// Begin starts a transaction whose writes become visible on Commit.
func (s *MemoryStore) Begin(ctx context.Context) (weather.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memSession{
		store:   s,
		columns: make(map[string][]string),
		rows:    make(map[string][]memRow),
	}, nil
}

// RecordHealth appends a summary and enforces retention.
func (s *MemoryStore) RecordHealth(_ context.Context, summary weather.HealthSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health = append(s.health, summary)
	if s.maxRows > 0 && len(s.health) > s.maxRows {
		s.health = s.health[len(s.health)-s.maxRows:]
	}
	return nil
}

// RecentHealth returns up to limit summaries, newest first.
func (s *MemoryStore) RecentHealth(_ context.Context, limit int) ([]weather.HealthSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.HealthSummary, 0, min(limit, len(s.health)))
	for i := len(s.health) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.health[i])
	}
	return out, nil
}

// LatestConditions returns the newest committed row of table.
func (s *MemoryStore) LatestConditions(_ context.Context, table string) (weather.Row, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return weather.Row{}, false, fmt.Errorf("no such table: %s", table)
	}
	r, found := latest(t.rows)
	if !found {
		return weather.Row{}, false, nil
	}
	return t.toRow(r), true, nil
}

// Conditions returns committed rows of table between from and to
// (inclusive), newest first.
func (s *MemoryStore) Conditions(_ context.Context, table string, from, to time.Time, limit int) ([]weather.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", table)
	}

	var matched []memRow
	for _, r := range t.rows {
		if !r.ts.Before(from) && !r.ts.After(to) {
			matched = append(matched, r)
		}
	}
	sortNewestFirst(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]weather.Row, len(matched))
	for i, r := range matched {
		out[i] = t.toRow(r)
	}
	return out, nil
}

func (t *memTable) toRow(r memRow) weather.Row {
	row := weather.Row{Timestamp: r.ts, Values: make(map[string]any, len(t.columns))}
	for _, c := range t.columns {
		if c == "id" || c == weather.TimestampColumn {
			continue
		}
		row.Values[c] = r.values[c]
	}
	return row
}

func latest(rows []memRow) (memRow, bool) {
	if len(rows) == 0 {
		return memRow{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.ts.After(best.ts) || (r.ts.Equal(best.ts) && r.id > best.id) {
			best = r
		}
	}
	return best, true
}

func sortNewestFirst(rows []memRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ts.Equal(rows[j].ts) {
			return rows[i].ts.After(rows[j].ts)
		}
		return rows[i].id > rows[j].id
	})
}

// memSession buffers column additions and rows until Commit.
type memSession struct {
	store   *MemoryStore
	columns map[string][]string
	rows    map[string][]memRow
	done    bool
}

func (m *memSession) Columns(_ context.Context, table string) ([]string, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	t, ok := m.store.tables[table]
	if !ok {
		return nil, nil
	}
	cols := append([]string(nil), t.columns...)
	return append(cols, m.columns[table]...), nil
}

func (m *memSession) AddColumn(_ context.Context, table, column string, _ weather.ColumnKind) error {
	if m.done {
		return sql.ErrTxDone
	}

	m.store.mu.RLock()
	t, ok := m.store.tables[table]
	exists := ok && t.hasColumn(column)
	m.store.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no such table: %s", table)
	}
	if exists || m.pendingColumn(table, column) {
		return nil
	}
	m.columns[table] = append(m.columns[table], column)
	return nil
}

func (m *memSession) LatestRow(_ context.Context, table string, columns []string) ([]any, bool, error) {
	if m.done {
		return nil, false, sql.ErrTxDone
	}

	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	t, ok := m.store.tables[table]
	if !ok {
		return nil, false, fmt.Errorf("no such table: %s", table)
	}
	for _, c := range columns {
		if !t.hasColumn(c) && !m.pendingColumn(table, c) {
			return nil, false, fmt.Errorf("no such column: %s.%s", table, c)
		}
	}

	r, found := latest(t.rows)
	if p, ok := latest(m.rows[table]); ok && (!found || !p.ts.Before(r.ts)) {
		r, found = p, true
	}
	if !found {
		return nil, false, nil
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = r.values[c]
	}
	return values, true, nil
}

func (m *memSession) InsertRow(_ context.Context, table string, ts time.Time, columns []string, values []any) error {
	if m.done {
		return sql.ErrTxDone
	}
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}

	m.store.mu.RLock()
	t, ok := m.store.tables[table]
	var missing string
	if ok {
		for _, c := range columns {
			if !t.hasColumn(c) && !m.pendingColumn(table, c) {
				missing = c
				break
			}
		}
	}
	m.store.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no such table: %s", table)
	}
	if missing != "" {
		return fmt.Errorf("no such column: %s.%s", table, missing)
	}

	row := memRow{ts: ts.UTC(), values: make(map[string]any, len(columns))}
	for i, c := range columns {
		row.values[c] = values[i]
	}
	m.rows[table] = append(m.rows[table], row)
	return nil
}

func (m *memSession) pendingColumn(table, column string) bool {
	for _, c := range m.columns[table] {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

// Commit applies the buffered writes and enforces retention.
func (m *memSession) Commit() error {
	if m.done {
		return sql.ErrTxDone
	}
	m.done = true

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for table, cols := range m.columns {
		t := s.tables[table]
		for _, c := range cols {
			if !t.hasColumn(c) {
				t.columns = append(t.columns, c)
			}
		}
	}
	for table, rows := range m.rows {
		t := s.tables[table]
		for _, r := range rows {
			s.nextID++
			r.id = s.nextID
			t.rows = append(t.rows, r)
		}
		if s.maxRows > 0 && len(t.rows) > s.maxRows {
			over := len(t.rows) - s.maxRows
			t.rows = t.rows[over:]
		}
	}
	return nil
}

// Rollback discards the buffered writes.
func (m *memSession) Rollback() error {
	m.done = true
	m.columns = nil
	m.rows = nil
	return nil
}
