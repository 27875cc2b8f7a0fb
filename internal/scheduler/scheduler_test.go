package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roller struct{ calls chan struct{} }

func (r *roller) RollDay(context.Context) error {
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return nil
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil, nil)
	err := s.Add("bad", "every tuesday", func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "schedule bad")
	assert.Equal(t, 0, s.Entries())
}

func TestDayRollDefaultSpec(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("no tzdata")
	}
	s := New(ny, nil)
	require.NoError(t, s.AddDayRoll("", &roller{}))
	assert.Equal(t, 1, s.Entries())
}

func TestJobRuns(t *testing.T) {
	s := New(nil, nil)
	r := &roller{calls: make(chan struct{}, 1)}
	require.NoError(t, s.AddDayRoll("@every 10ms", r))

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-r.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("day roll never ran")
	}
}
