package weather

// SummarizeRows computes min/max/mean for every numeric field across rows.
// Non-numeric and null values are ignored.
func SummarizeRows(rows []Row) map[string]FieldStats {
	type acc struct {
		min, max, sum float64
		n             int
	}
	sums := make(map[string]*acc)

	for _, r := range rows {
		for field, v := range r.Values {
			f, ok := numeric(v)
			if !ok {
				continue
			}
			a, exists := sums[field]
			if !exists {
				sums[field] = &acc{min: f, max: f, sum: f, n: 1}
				continue
			}
			if f < a.min {
				a.min = f
			}
			if f > a.max {
				a.max = f
			}
			a.sum += f
			a.n++
		}
	}

	out := make(map[string]FieldStats, len(sums))
	for field, a := range sums {
		out[field] = FieldStats{
			Min:   a.min,
			Max:   a.max,
			Mean:  a.sum / float64(a.n),
			Count: a.n,
		}
	}
	return out
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}
