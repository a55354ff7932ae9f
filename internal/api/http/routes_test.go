package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weatherlink-logger/internal/metrics"
	"github.com/i474232898/weatherlink-logger/internal/store"
	"github.com/i474232898/weatherlink-logger/internal/weather"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	app := fiber.New()
	mem := store.NewMemoryStore(0)
	RegisterRoutes(app, weather.NewExplorer(mem, mem), metrics.NewCollector(false).Handler())
	return app, mem
}

func insertOutdoor(t *testing.T, mem *store.MemoryStore, ts time.Time, temp float64) {
	t.Helper()
	ctx := context.Background()
	sess, err := mem.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.AddColumn(ctx, "outdoor_conditions", "temp", weather.KindReal))
	require.NoError(t, sess.InsertRow(ctx, "outdoor_conditions", ts, []string{"temp"}, []any{temp}))
	require.NoError(t, sess.Commit())
}

func doGet(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// TestHealthLimitValidation verifies that the health endpoint enforces the
// expected 1-500 range for the `limit` query parameter.
func TestHealthLimitValidation(t *testing.T) {
	app, _ := newTestApp(t)

	for _, target := range []string{
		"/api/v1/health?limit=0",
		"/api/v1/health?limit=501",
		"/api/v1/health?limit=abc",
	} {
		resp, _ := doGet(t, app, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, _ := doGet(t, app, "/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestHealthNewestFirst(t *testing.T) {
	app, mem := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, mem.RecordHealth(ctx, weather.HealthSummary{Timestamp: base, APISuccess: 1}))
	require.NoError(t, mem.RecordHealth(ctx, weather.HealthSummary{Timestamp: base.Add(5 * time.Minute), APISuccess: 1, DBSuccess: 1}))

	resp, body := doGet(t, app, "/api/v1/health?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Count     int                     `json:"count"`
		Summaries []weather.HealthSummary `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, 1, got.Count)
	assert.Equal(t, 1, got.Summaries[0].DBSuccess)
}

func TestLatestConditions(t *testing.T) {
	app, mem := newTestApp(t)

	resp, _ := doGet(t, app, "/api/v1/conditions/outdoor/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doGet(t, app, "/api/v1/conditions/attic/latest")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	insertOutdoor(t, mem, base, 70.1)
	insertOutdoor(t, mem, base.Add(time.Minute), 71.3)

	resp, body := doGet(t, app, "/api/v1/conditions/outdoor/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Row weather.Row `json:"row"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 71.3, got.Row.Values["temp"])
	assert.True(t, got.Row.Timestamp.Equal(base.Add(time.Minute)))
}

func TestHistoryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []string{
		"/api/v1/conditions/outdoor/history",
		"/api/v1/conditions/outdoor/history?from=yesterday&to=today",
		"/api/v1/conditions/outdoor/history?from=1717243200&to=1717239600",
		"/api/v1/conditions/outdoor/history?from=1717239600&to=1717243200&limit=0",
	}
	for _, target := range cases {
		resp, _ := doGet(t, app, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestHistoryWithStats(t *testing.T) {
	app, mem := newTestApp(t)
	insertOutdoor(t, mem, base, 70)
	insertOutdoor(t, mem, base.Add(time.Minute), 72)
	insertOutdoor(t, mem, base.Add(2*time.Hour), 90)

	resp, body := doGet(t, app, "/api/v1/conditions/outdoor/history?from=2024-06-01T11:00:00Z&to=2024-06-01T13:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Count int                           `json:"count"`
		Stats map[string]weather.FieldStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, weather.FieldStats{Min: 70, Max: 72, Mean: 71, Count: 2}, got.Stats["temp"])

	resp, _ = doGet(t, app, "/api/v1/conditions/outdoor/history?from=1000&to=2000")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	app, mem := newTestApp(t)
	insertOutdoor(t, mem, base, 68.4)
	msg := "fetch current conditions: status 401"
	require.NoError(t, mem.RecordHealth(context.Background(), weather.HealthSummary{Timestamp: base, Errors: &msg}))

	resp, body := doGet(t, app, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	page := string(body)
	assert.Contains(t, page, "68.4")
	assert.Contains(t, page, "status 401")
	assert.Contains(t, page, "network")
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doGet(t, app, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "weatherlink_skipped_inserts_total")
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("1717243200")
	require.NoError(t, err)
	assert.True(t, got.Equal(base))

	got, err = parseTime("2024-06-01T14:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(base))

	_, err = parseTime("June 1st")
	assert.Error(t, err)
}
