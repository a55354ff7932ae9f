package store

import (
	"fmt"
	"strings"

	"github.com/i474232898/weatherlink-logger/internal/common"
	"github.com/i474232898/weatherlink-logger/internal/weather"
)

const (
	driverMySQL  = "mysql"
	driverSQLite = "sqlite3"
)

// dialect holds the engine-specific SQL the store needs.
type dialect struct {
	name         string
	quoteChar    string
	columnTypes  map[weather.ColumnKind]string
	columnsQuery string
	// duplicateColumn lists lower-cased fragments of the engine's
	// "column already exists" error.
	duplicateColumn []string
}

var mysqlDialect = dialect{
	name:      driverMySQL,
	quoteChar: "`",
	columnTypes: map[weather.ColumnKind]string{
		weather.KindInteger:   "BIGINT",
		weather.KindReal:      "DOUBLE",
		weather.KindText:      fmt.Sprintf("VARCHAR(%d)", weather.MaxTextLength),
		weather.KindUnbounded: "TEXT",
	},
	columnsQuery: "SELECT COLUMN_NAME FROM information_schema.COLUMNS " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
	// Server messages can be localized (lc_messages); the error number is not.
	duplicateColumn: []string{"error 1060", "duplicate column name"},
}

var sqliteDialect = dialect{
	name:      driverSQLite,
	quoteChar: `"`,
	columnTypes: map[weather.ColumnKind]string{
		weather.KindInteger:   "INTEGER",
		weather.KindReal:      "REAL",
		weather.KindText:      fmt.Sprintf("VARCHAR(%d)", weather.MaxTextLength),
		weather.KindUnbounded: "TEXT",
	},
	columnsQuery:    "SELECT name FROM pragma_table_info(?) ORDER BY cid",
	duplicateColumn: []string{"duplicate column name"},
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case driverMySQL:
		return mysqlDialect, nil
	case driverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// quote renders an identifier, doubling embedded quote characters.
func (d dialect) quote(ident string) string {
	return d.quoteChar + strings.ReplaceAll(ident, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

func (d dialect) quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = d.quote(id)
	}
	return strings.Join(quoted, ", ")
}

func (d dialect) columnType(kind weather.ColumnKind) string {
	if t, ok := d.columnTypes[kind]; ok {
		return t
	}
	return d.columnTypes[weather.KindUnbounded]
}

func (d dialect) isDuplicateColumn(err error) bool {
	return err != nil && common.HasAny(strings.ToLower(err.Error()), d.duplicateColumn...)
}

func (d dialect) addColumnSQL(table, column string, kind weather.ColumnKind) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.quote(table), d.quote(column), d.columnType(kind))
}

func (d dialect) latestRowSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC, id DESC LIMIT 1",
		d.quoteAll(columns), d.quote(table), d.quote(weather.TimestampColumn))
}

func (d dialect) insertRowSQL(table string, columns []string) string {
	all := append([]string{weather.TimestampColumn}, columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.quote(table), d.quoteAll(all), placeholders)
}

func (d dialect) latestConditionsSQL(table string) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC, id DESC LIMIT 1",
		d.quote(table), d.quote(weather.TimestampColumn))
}

func (d dialect) conditionsSQL(table string) string {
	ts := d.quote(weather.TimestampColumn)
	return fmt.Sprintf("SELECT * FROM %s WHERE %s >= ? AND %s <= ? ORDER BY %s DESC, id DESC LIMIT ?",
		d.quote(table), ts, ts, ts)
}
