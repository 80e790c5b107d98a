package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddIntervalRunsAndTracksStats(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Stop()

	ran := make(chan struct{}, 1)
	_, err = s.AddInterval("test-task", 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
	// Allow the wrapper's bookkeeping update to land.
	time.Sleep(20 * time.Millisecond)

	stats := s.Stats()
	st, ok := stats["test-task"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, st.RunCount, int64(1))
	assert.Empty(t, st.LastError)
}

func TestScheduler_TracksTaskErrors(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Stop()

	done := make(chan struct{}, 1)
	_, err = s.AddInterval("failing-task", 50*time.Millisecond, func(ctx context.Context) error {
		defer func() {
			select {
			case done <- struct{}{}:
			default:
			}
		}()
		return assertErr
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
	time.Sleep(20 * time.Millisecond)

	stats := s.Stats()
	st := stats["failing-task"]
	assert.GreaterOrEqual(t, st.ErrorCount, int64(1))
	assert.Equal(t, assertErr.Error(), st.LastError)
}

var assertErr = simpleErr("boom")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
