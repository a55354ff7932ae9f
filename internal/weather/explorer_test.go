package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConditions struct {
	rows []Row
	err  error

	gotTable string
	gotFrom  time.Time
}

func (s *stubConditions) LatestConditions(_ context.Context, table string) (Row, bool, error) {
	s.gotTable = table
	if s.err != nil || len(s.rows) == 0 {
		return Row{}, false, s.err
	}
	return s.rows[0], true, nil
}

func (s *stubConditions) Conditions(_ context.Context, table string, from, _ time.Time, _ int) ([]Row, error) {
	s.gotTable = table
	s.gotFrom = from
	return s.rows, s.err
}

func TestExplorerNotFound(t *testing.T) {
	e := NewExplorer(&stubConditions{}, nil)

	_, err := e.Latest(context.Background(), CategoryIndoor)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.History(context.Background(), CategoryIndoor, t0, t0.Add(time.Hour), 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExplorerReadsCategoryTable(t *testing.T) {
	stub := &stubConditions{rows: []Row{{Timestamp: t0, Values: map[string]any{"bar_absolute": 29.7}}}}
	e := NewExplorer(stub, nil)

	local := time.FixedZone("PDT", -7*3600)
	rows, err := e.History(context.Background(), CategoryBarometric, t0.In(local), t0.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "barometric_conditions", stub.gotTable)
	assert.Equal(t, time.UTC, stub.gotFrom.Location())
}

func TestExplorerWrapsStorageErrors(t *testing.T) {
	e := NewExplorer(&stubConditions{err: errors.New("no such table")}, nil)

	_, err := e.Latest(context.Background(), CategoryNetwork)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "latest network conditions")
}
