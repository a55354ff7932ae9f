package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore keeps category tables in a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var (
	_ weather.Database        = (*SQLStore)(nil)
	_ weather.ConditionReader = (*SQLStore)(nil)
)

// NewSQLStore wraps db, speaking the given driver's dialect.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// Begin starts the cycle's transaction.
func (s *SQLStore) Begin(ctx context.Context) (weather.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlSession{tx: tx, tables: sqlTables{q: tx, dialect: s.dialect}}, nil
}

// LatestConditions returns the newest row of table.
func (s *SQLStore) LatestConditions(ctx context.Context, table string) (weather.Row, bool, error) {
	rows, err := s.queryRows(ctx, s.dialect.latestConditionsSQL(table))
	if err != nil {
		return weather.Row{}, false, err
	}
	if len(rows) == 0 {
		return weather.Row{}, false, nil
	}
	return rows[0], true, nil
}

// Conditions returns rows of table within [from, to], newest first.
func (s *SQLStore) Conditions(ctx context.Context, table string, from, to time.Time, limit int) ([]weather.Row, error) {
	return s.queryRows(ctx, s.dialect.conditionsSQL(table), from.UTC(), to.UTC(), limit)
}

func (s *SQLStore) queryRows(ctx context.Context, query string, args ...any) ([]weather.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close condition rows", "error", err)
		}
	}()

	var out []weather.Row
	for rows.Next() {
		names, values, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		row := weather.Row{Values: make(map[string]any, len(names))}
		for i, name := range names {
			switch name {
			case "id":
			case weather.TimestampColumn:
				row.Timestamp = asTime(values[i])
			default:
				row.Values[name] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type sqlSession struct {
	tx     *sql.Tx
	tables sqlTables
}

func (s *sqlSession) Columns(ctx context.Context, table string) ([]string, error) {
	return s.tables.Columns(ctx, table)
}

func (s *sqlSession) AddColumn(ctx context.Context, table, column string, kind weather.ColumnKind) error {
	return s.tables.AddColumn(ctx, table, column, kind)
}

func (s *sqlSession) LatestRow(ctx context.Context, table string, columns []string) ([]any, bool, error) {
	return s.tables.LatestRow(ctx, table, columns)
}

func (s *sqlSession) InsertRow(ctx context.Context, table string, ts time.Time, columns []string, values []any) error {
	return s.tables.InsertRow(ctx, table, ts, columns, values)
}

func (s *sqlSession) Commit() error {
	return s.tx.Commit()
}

func (s *sqlSession) Rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// sqlTables implements weather.Tables over any queryer.
type sqlTables struct {
	q       queryer
	dialect dialect
}

func (t sqlTables) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, t.dialect.columnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close column rows", "error", err)
		}
	}()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (t sqlTables) AddColumn(ctx context.Context, table, column string, kind weather.ColumnKind) error {
	_, err := t.q.ExecContext(ctx, t.dialect.addColumnSQL(table, column, kind))
	if t.dialect.isDuplicateColumn(err) {
		// Another writer added it first.
		return nil
	}
	return err
}

func (t sqlTables) LatestRow(ctx context.Context, table string, columns []string) ([]any, bool, error) {
	rows, err := t.q.QueryContext(ctx, t.dialect.latestRowSQL(table, columns))
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest row", "error", err)
		}
	}()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	_, values, err := scanRow(rows)
	if err != nil {
		return nil, false, err
	}
	return values, true, rows.Err()
}

func (t sqlTables) InsertRow(ctx context.Context, table string, ts time.Time, columns []string, values []any) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}
	args := make([]any, 0, len(values)+1)
	args = append(args, ts.UTC())
	args = append(args, values...)
	_, err := t.q.ExecContext(ctx, t.dialect.insertRowSQL(table, columns), args...)
	return err
}

// scanRow scans the current row into driver-independent Go values.
func scanRow(rows *sql.Rows) ([]string, []any, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, nil, err
	}

	names := make([]string, len(types))
	values := make([]any, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		values[i] = decodeValue(ct.DatabaseTypeName(), raw[i])
	}
	return names, values, nil
}

// decodeValue normalizes what a driver returned: text-protocol bytes are
// parsed by declared type, narrow numerics are widened.
func decodeValue(dbType string, v any) any {
	switch x := v.(type) {
	case []byte:
		s := string(x)
		switch baseType(dbType) {
		case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT":
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case "DOUBLE", "FLOAT", "REAL", "DECIMAL", "NUMERIC":
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return s
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	t = strings.TrimPrefix(t, "UNSIGNED ")
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	return t
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
