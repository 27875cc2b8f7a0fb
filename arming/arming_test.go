package arming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InitialState(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Disarmed, New("").State())
	assert.Equal(t, Staged, New(Staged).State())
	assert.Equal(t, Disarmed, New(Armed).State(), "never start armed")
}

func TestToggleStaged(t *testing.T) {
	t.Parallel()

	m := New(Disarmed)
	assert.Equal(t, Staged, m.ToggleStaged())
	assert.Equal(t, Disarmed, m.ToggleStaged())

	m.ToggleStaged()
	require.NoError(t, m.Arm())
	assert.Equal(t, Disarmed, m.ToggleStaged(), "unstaging an armed system disarms it")
}

func TestToggleArm(t *testing.T) {
	t.Parallel()

	m := New(Disarmed)
	st, err := m.ToggleArm()
	assert.ErrorIs(t, err, ErrNotStaged)
	assert.Equal(t, Disarmed, st)
	assert.False(t, m.Armed())

	m.ToggleStaged()
	st, err = m.ToggleArm()
	require.NoError(t, err)
	assert.Equal(t, Armed, st)
	assert.True(t, m.Armed())

	st, err = m.ToggleArm()
	require.NoError(t, err)
	assert.Equal(t, Staged, st)
	assert.False(t, m.Armed())
}

func TestArmAndDisarm(t *testing.T) {
	t.Parallel()

	m := New(Disarmed)
	assert.ErrorIs(t, m.Arm(), ErrNotStaged)

	m.ToggleStaged()
	require.NoError(t, m.Arm())
	require.NoError(t, m.Arm())
	assert.True(t, m.Armed())

	m.Disarm()
	assert.Equal(t, Disarmed, m.State())
	m.Disarm()
	assert.Equal(t, Disarmed, m.State())
}

func TestObserversSeeEveryTransition(t *testing.T) {
	t.Parallel()

	m := New(Disarmed)
	var seen []Transition
	m.OnChange(func(tr Transition) {
		// observers may read state without deadlocking
		assert.Equal(t, tr.To, m.State())
		seen = append(seen, tr)
	})

	m.ToggleStaged()
	_, _ = m.ToggleArm()
	m.Disarm()
	// neither a no-op nor a rejected toggle notifies
	m.Disarm()
	_, _ = m.ToggleArm()

	assert.Equal(t, []Transition{
		{From: Disarmed, To: Staged},
		{From: Staged, To: Armed},
		{From: Armed, To: Disarmed},
	}, seen)
}

func TestParseState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{"", Disarmed, false},
		{"staged", Staged, false},
		{" ARMED ", Armed, false},
		{"hot", "", true},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
