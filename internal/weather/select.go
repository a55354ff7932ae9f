package weather

import (
	"encoding/json"
	"sort"
	"strings"
)

// SelectReading returns the first data record of the first sensor block that
// matches the category and carries data. ok is false when the category is
// absent from the response, which is not an error.
func SelectReading(sensors []SensorBlock, c Category) (Reading, bool) {
	code := c.SensorType()
	for _, s := range sensors {
		if s.SensorType != code || len(s.Data) == 0 {
			continue
		}
		first := s.Data[0]
		if len(first) == 0 {
			return Reading{}, false
		}
		fields := make(map[string]any, len(first))
		for k, v := range first {
			fields[k] = NormalizeValue(v)
		}
		return Reading{Category: c, Fields: fields}, true
	}
	return Reading{}, false
}

// NormalizeValue converts a decoded JSON value into the reading value domain:
// integers and booleans become int64, other numbers float64. Structured values
// are normalized recursively.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := x.Int64(); err == nil {
				return n
			}
		}
		f, err := x.Float64()
		if err != nil {
			return s
		}
		return f
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = NormalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
