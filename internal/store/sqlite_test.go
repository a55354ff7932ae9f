package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weatherlink-logger/internal/config"
	"github.com/i474232898/weatherlink-logger/internal/weather"
)

type staticFetcher struct {
	doc weather.Document
}

func (f staticFetcher) Fetch(context.Context) (weather.Document, error) {
	return f.doc, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSQLite migrates a fresh database file and returns the data and health
// connections.
func openSQLite(t *testing.T) (*sql.DB, *sql.DB) {
	t.Helper()
	cfg := config.DBConfig{
		Driver:       driverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "weather.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	require.NoError(t, Migrate(cfg, discardLogger()))
	require.NoError(t, Migrate(cfg, discardLogger()), "second run is a no-op")

	data, err := Open(cfg)
	require.NoError(t, err)
	health, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = data.Close()
		_ = health.Close()
	})
	return data, health
}

func stationDoc(temp float64, extra map[string]any) weather.Document {
	outdoor := map[string]any{"ts": int64(1710057600), "temp": temp, "hum": int64(55), "wind_dir": nil}
	for k, v := range extra {
		outdoor[k] = v
	}
	return weather.Document{Sensors: []weather.SensorBlock{
		{SensorType: 43, Data: []map[string]any{outdoor}},
		{SensorType: 242, Data: []map[string]any{{"ts": int64(1710057600), "bar_absolute": 29.71}}},
	}}
}

func TestSQLiteIngestionCycle(t *testing.T) {
	dataDB, healthDB := openSQLite(t)
	ctx := context.Background()

	data, err := NewSQLStore(dataDB, driverSQLite)
	require.NoError(t, err)
	health, err := NewHealthRepository(healthDB, driverSQLite)
	require.NoError(t, err)

	run := func(doc weather.Document) weather.HealthSummary {
		svc := weather.NewService(staticFetcher{doc: doc}, data, health, weather.WithServiceLogger(discardLogger()))
		return svc.RunCycle(ctx)
	}

	first := run(stationDoc(70.1, nil))
	require.Nil(t, first.Errors)
	assert.Equal(t, 1, first.DBSuccess)
	assert.Equal(t, 1, first.InsertOutdoor)
	assert.Equal(t, 1, first.InsertBarometric)

	second := run(stationDoc(70.1, nil))
	require.Nil(t, second.Errors)
	assert.Equal(t, 0, second.InsertOutdoor, "unchanged reading is skipped")
	assert.Equal(t, 2, second.SkippedInserts)

	third := run(stationDoc(70.1, map[string]any{"uv_index": 3.5, "status": "ok"}))
	require.Nil(t, third.Errors)
	assert.Equal(t, 1, third.InsertOutdoor, "new columns force an insert")
	assert.Equal(t, 1, third.SkippedInserts)

	fourth := run(stationDoc(70.2, map[string]any{"uv_index": 3.5, "status": "ok"}))
	assert.Equal(t, 1, fourth.InsertOutdoor)

	row, found, err := data.LatestConditions(ctx, "outdoor_conditions")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 70.2, row.Values["temp"])
	assert.Equal(t, int64(55), row.Values["hum"])
	assert.Equal(t, "ok", row.Values["status"])
	assert.Nil(t, row.Values["wind_dir"])
	assert.Equal(t, time.Unix(1710057600, 0).UTC(), row.Timestamp)

	rows, err := data.Conditions(ctx, "outdoor_conditions", row.Timestamp.Add(-time.Minute), row.Timestamp, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	summaries, err := health.RecentHealth(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	assert.Equal(t, 1, summaries[0].InsertOutdoor)
	assert.Equal(t, 2, summaries[len(summaries)-1].InsertOutdoor+summaries[len(summaries)-1].InsertBarometric)
}

func TestSQLiteColumnKinds(t *testing.T) {
	dataDB, _ := openSQLite(t)
	ctx := context.Background()
	data, err := NewSQLStore(dataDB, driverSQLite)
	require.NoError(t, err)

	sess, err := data.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.AddColumn(ctx, "indoor_conditions", "hum_in", weather.KindInteger))
	require.NoError(t, sess.AddColumn(ctx, "indoor_conditions", "hum_in", weather.KindInteger), "duplicate column is tolerated")
	require.NoError(t, sess.AddColumn(ctx, "indoor_conditions", "temp_in", weather.KindReal))
	require.NoError(t, sess.Commit())

	rows, err := dataDB.QueryContext(ctx, "SELECT name, type FROM pragma_table_info('indoor_conditions') ORDER BY cid")
	require.NoError(t, err)
	defer rows.Close()
	types := map[string]string{}
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		types[name] = typ
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, "INTEGER", types["hum_in"])
	assert.Equal(t, "REAL", types["temp_in"])
}

func TestHealthRepositoryRoundTrip(t *testing.T) {
	_, healthDB := openSQLite(t)
	ctx := context.Background()
	repo, err := NewHealthRepository(healthDB, driverSQLite)
	require.NoError(t, err)

	msg := "fetch current conditions: status 503"
	ts := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordHealth(ctx, weather.HealthSummary{Timestamp: ts, Errors: &msg}))
	require.NoError(t, repo.RecordHealth(ctx, weather.HealthSummary{Timestamp: ts.Add(5 * time.Minute), APISuccess: 1, DBSuccess: 1, SkippedInserts: 3}))

	got, err := repo.RecentHealth(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].SkippedInserts)
	assert.Nil(t, got[0].Errors)
	assert.True(t, got[0].Timestamp.Equal(ts.Add(5*time.Minute)))

	got, err = repo.RecentHealth(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[1].Errors)
	assert.Equal(t, msg, *got[1].Errors)
}

func TestNewHealthRepositoryUnknownDriver(t *testing.T) {
	_, err := NewHealthRepository(nil, "postgres")
	assert.Error(t, err)
}
