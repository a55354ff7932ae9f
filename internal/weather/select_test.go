package weather

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
  "station_id": 12345,
  "generated_at": 1709971200,
  "sensors": [
    {"lsid": 1, "sensor_type": 504, "data_structure_type": 15, "data": []},
    {"lsid": 2, "sensor_type": 43, "data_structure_type": 10, "data": [
      {"ts": 1709971140, "temp": 48.3, "hum": 81, "dew_point": 42.9, "rain_storm_last_start_at": null, "wind_dir_last": 270}
    ]},
    {"lsid": 3, "sensor_type": 43, "data_structure_type": 10, "data": [{"ts": 1, "temp": 0.0}]},
    {"lsid": 4, "sensor_type": 242, "data_structure_type": 12, "data": [
      {"ts": 1709971140, "bar_absolute": 29.71, "bar_trend": -0.01, "ok": true, "extra": {"a": 1, "b": [1.5]}}
    ]}
  ]
}`

func decodeSample(t *testing.T) Document {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(sampleDocument))
	dec.UseNumber()
	var doc Document
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestSelectReadingFirstMatchingBlock(t *testing.T) {
	doc := decodeSample(t)

	r, ok := SelectReading(doc.Sensors, CategoryOutdoor)
	require.True(t, ok)
	assert.Equal(t, CategoryOutdoor, r.Category)
	assert.Equal(t, 48.3, r.Fields["temp"])
	assert.Equal(t, int64(81), r.Fields["hum"])
	assert.Equal(t, int64(270), r.Fields["wind_dir_last"])
	assert.Nil(t, r.Fields["rain_storm_last_start_at"])
	_, present := r.Fields["rain_storm_last_start_at"]
	assert.True(t, present)

	ts, err := r.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1709971140, 0).UTC(), ts)
}

func TestSelectReadingAbsentCategories(t *testing.T) {
	doc := decodeSample(t)

	_, ok := SelectReading(doc.Sensors, CategoryIndoor)
	assert.False(t, ok, "no block")

	_, ok = SelectReading(doc.Sensors, CategoryNetwork)
	assert.False(t, ok, "empty data")

	_, ok = SelectReading(nil, CategoryOutdoor)
	assert.False(t, ok)

	_, ok = SelectReading([]SensorBlock{{SensorType: 243, Data: []map[string]any{{}}}}, CategoryIndoor)
	assert.False(t, ok, "empty record")
}

func TestSelectReadingNormalizesValues(t *testing.T) {
	doc := decodeSample(t)

	r, ok := SelectReading(doc.Sensors, CategoryBarometric)
	require.True(t, ok)
	assert.Equal(t, 29.71, r.Fields["bar_absolute"])
	assert.Equal(t, -0.01, r.Fields["bar_trend"])
	assert.Equal(t, int64(1), r.Fields["ok"])
	assert.Equal(t, map[string]any{"a": int64(1), "b": []any{1.5}}, r.Fields["extra"])
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(12), NormalizeValue(json.Number("12")))
	assert.Equal(t, 12.0, NormalizeValue(json.Number("12.0")))
	assert.Equal(t, 1200.0, NormalizeValue(json.Number("1.2e3")))
	assert.Equal(t, 1e20, NormalizeValue(json.Number("100000000000000000000")))
	assert.Equal(t, int64(0), NormalizeValue(false))
	assert.Equal(t, "x", NormalizeValue("x"))
	assert.Nil(t, NormalizeValue(nil))
}

func TestReadingTimestamp(t *testing.T) {
	_, err := Reading{Fields: map[string]any{}}.Timestamp()
	assert.ErrorIs(t, err, ErrNoTimestamp)

	_, err = Reading{Fields: map[string]any{"ts": "yesterday"}}.Timestamp()
	assert.ErrorIs(t, err, ErrNoTimestamp)

	_, err = Reading{Fields: map[string]any{"ts": 1.5}}.Timestamp()
	assert.ErrorIs(t, err, ErrNoTimestamp)

	ts, err := Reading{Fields: map[string]any{"ts": 1700000000.0}}.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Outdoor ")
	require.NoError(t, err)
	assert.Equal(t, CategoryOutdoor, c)
	assert.Equal(t, 43, c.SensorType())
	assert.Equal(t, "outdoor_conditions", c.Table())

	_, err = ParseCategory("attic")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestStorageValue(t *testing.T) {
	assert.Equal(t, int64(3), StorageValue(int64(3)))
	assert.Equal(t, `{"a":1}`, StorageValue(map[string]any{"a": int64(1)}))
	assert.Nil(t, StorageValue(nil))
}

func TestSummarizeRows(t *testing.T) {
	rows := []Row{
		{Values: map[string]any{"temp": 70.0, "hum": int64(40), "status": "ok"}},
		{Values: map[string]any{"temp": 74.0, "hum": nil}},
	}
	stats := SummarizeRows(rows)

	assert.Equal(t, FieldStats{Min: 70, Max: 74, Mean: 72, Count: 2}, stats["temp"])
	assert.Equal(t, FieldStats{Min: 40, Max: 40, Mean: 40, Count: 1}, stats["hum"])
	_, ok := stats["status"]
	assert.False(t, ok)
}
