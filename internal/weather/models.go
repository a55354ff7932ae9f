package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category is one of the fixed sensor groupings exposed by the station API.
type Category string

const (
	CategoryOutdoor    Category = "outdoor"
	CategoryIndoor     Category = "indoor"
	CategoryBarometric Category = "barometric"
	CategoryNetwork    Category = "network"
)

var categories = []Category{CategoryOutdoor, CategoryIndoor, CategoryBarometric, CategoryNetwork}

// Categories returns every category in processing order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps a user-supplied name onto a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// SensorType is the numeric sensor_type code the API uses for this category.
func (c Category) SensorType() int {
	switch c {
	case CategoryOutdoor:
		return 43
	case CategoryIndoor:
		return 243
	case CategoryBarometric:
		return 242
	case CategoryNetwork:
		return 504
	default:
		return 0
	}
}

// Table is the storage table holding this category's readings.
func (c Category) Table() string {
	switch c {
	case CategoryOutdoor:
		return "outdoor_conditions"
	case CategoryIndoor:
		return "indoor_conditions"
	case CategoryBarometric:
		return "barometric_conditions"
	case CategoryNetwork:
		return "network_status"
	default:
		return ""
	}
}

// TimestampColumn is the column every category table orders by.
const TimestampColumn = "timestamp_utc"

// TimestampField is the reading field carrying the capture time in Unix seconds.
const TimestampField = "ts"

var (
	// ErrUnknownCategory is returned for names that are not a known category.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNoTimestamp is returned when a reading lacks a usable ts field.
	ErrNoTimestamp = errors.New("reading has no usable ts field")
)

// Document is the parsed body of a current-conditions response.
type Document struct {
	StationID   int64         `json:"station_id"`
	GeneratedAt int64         `json:"generated_at"`
	Sensors     []SensorBlock `json:"sensors"`
}

// SensorBlock is one sensor entry of a Document.
type SensorBlock struct {
	LSID              int64            `json:"lsid"`
	SensorType        int              `json:"sensor_type"`
	DataStructureType int              `json:"data_structure_type"`
	Data              []map[string]any `json:"data"`
}

// Reading is one timestamped record of field values for a single category.
// Values are int64, float64, string, nil, or structured (map/slice).
type Reading struct {
	Category Category
	Fields   map[string]any
}

// Timestamp returns the capture time carried in the ts field.
func (r Reading) Timestamp() (time.Time, error) {
	v, ok := r.Fields[TimestampField]
	if !ok {
		return time.Time{}, ErrNoTimestamp
	}
	switch ts := v.(type) {
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	case float64:
		if ts == float64(int64(ts)) {
			return time.Unix(int64(ts), 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %v (%T)", ErrNoTimestamp, v, v)
}

// SortedFields returns the reading's field names in canonical (lexicographic) order.
func (r Reading) SortedFields() []string {
	return sortedKeys(r.Fields)
}

// StorageValue converts a reading value into the form written to a table.
// Structured values are stored as their JSON encoding.
func StorageValue(v any) any {
	switch v.(type) {
	case nil, int64, float64, string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// HealthSummary is the one-row-per-cycle record of what the cycle did.
type HealthSummary struct {
	Timestamp        time.Time `json:"timestampUtc"`
	APISuccess       int       `json:"apiSuccess"`
	DBSuccess        int       `json:"dbSuccess"`
	InsertOutdoor    int       `json:"insertOutdoor"`
	InsertIndoor     int       `json:"insertIndoor"`
	InsertBarometric int       `json:"insertBarometric"`
	InsertNetwork    int       `json:"insertNetwork"`
	SkippedInserts   int       `json:"skippedInserts"`
	Errors           *string   `json:"errors"`
}

// MarkInserted sets the insert flag for a category.
func (h *HealthSummary) MarkInserted(c Category) {
	switch c {
	case CategoryOutdoor:
		h.InsertOutdoor = 1
	case CategoryIndoor:
		h.InsertIndoor = 1
	case CategoryBarometric:
		h.InsertBarometric = 1
	case CategoryNetwork:
		h.InsertNetwork = 1
	}
}

// Inserted reports the insert flag for a category.
func (h HealthSummary) Inserted(c Category) bool {
	switch c {
	case CategoryOutdoor:
		return h.InsertOutdoor == 1
	case CategoryIndoor:
		return h.InsertIndoor == 1
	case CategoryBarometric:
		return h.InsertBarometric == 1
	case CategoryNetwork:
		return h.InsertNetwork == 1
	}
	return false
}

func (h *HealthSummary) clearInserts() {
	h.InsertOutdoor = 0
	h.InsertIndoor = 0
	h.InsertBarometric = 0
	h.InsertNetwork = 0
}

// Row is a stored category row as seen by readers (dashboard, plot).
type Row struct {
	Timestamp time.Time      `json:"timestampUtc"`
	Values    map[string]any `json:"values"`
}

// FieldStats summarizes one numeric field over a set of rows.
type FieldStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}
