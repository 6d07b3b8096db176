package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for _, valid := range []string{"pending", "in_progress", "completed", "cancelled"} {
		got, err := ParseState(valid)
		require.NoError(t, err)
		assert.Equal(t, State(valid), got)
	}

	_, err := ParseState("shipped")
	require.Error(t, err)
}

func TestTrackingCodeFormat(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "LAV-20260102-000007", TrackingCode(7, at))
	assert.Equal(t, "LAV-20260102-123456", TrackingCode(123456, at))
	// Ids beyond six digits widen rather than truncate.
	assert.Equal(t, "LAV-20260102-1234567", TrackingCode(1234567, at))
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateInProgress.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateCancelled.Terminal())
}
