package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	closed := time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)
	want := sampleTrade("T123", closed, "-120")
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade("T123")
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "got %+v", got)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade("nonexistent")
	assert.ErrorIs(t, err, ErrTradeNotFound)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("late", day.Add(16*time.Hour), "5")))
	require.NoError(t, j.RecordTrade(sampleTrade("early", day.Add(10*time.Hour), "-3")))
	require.NoError(t, j.RecordTrade(sampleTrade("before", day.Add(-time.Hour), "1")))
	require.NoError(t, j.RecordTrade(sampleTrade("boundary", day.Add(24*time.Hour), "1")))

	got, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
}

func TestListTradesClosedBetweenEmpty(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	got, err := j.ListTradesClosedBetween(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}
