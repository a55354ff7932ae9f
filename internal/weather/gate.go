package weather

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// InsertIfChanged writes r into table unless the table's latest row holds the
// same values for r's fields. An empty table always gets the row. It reports
// whether a row was inserted.
func InsertIfChanged(ctx context.Context, tables Tables, table string, ts time.Time, r Reading) (bool, error) {
	log := loggerFrom(ctx)

	fields := r.SortedFields()
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = StorageValue(r.Fields[f])
	}

	latest, found, err := tables.LatestRow(ctx, table, fields)
	if err != nil {
		return false, fmt.Errorf("read latest row of %s: %w", table, err)
	}

	if found && rowEqual(latest, values) {
		log.Info("no change, skipping insert", "table", table, "timestamp", ts)
		return false, nil
	}

	if err := tables.InsertRow(ctx, table, ts, fields, values); err != nil {
		return false, fmt.Errorf("insert into %s: %w", table, err)
	}
	log.Info("inserted new data", "table", table, "timestamp", ts)
	return true, nil
}

func rowEqual(stored, candidate []any) bool {
	if len(stored) != len(candidate) {
		return false
	}
	for i := range candidate {
		if !valueEqual(stored[i], candidate[i]) {
			return false
		}
	}
	return true
}

// valueEqual compares a stored value with a candidate storage value. The
// stored value is brought into the candidate's kind when that is lossless;
// floats compare exactly.
func valueEqual(stored, candidate any) bool {
	if b, ok := stored.([]byte); ok {
		stored = string(b)
	}
	if candidate == nil || stored == nil {
		return candidate == nil && stored == nil
	}

	switch c := candidate.(type) {
	case int64:
		n, ok := asInt64(stored)
		return ok && n == c
	case float64:
		f, ok := asFloat64(stored)
		return ok && f == c
	case string:
		s, ok := stored.(string)
		return ok && s == c
	default:
		return false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
