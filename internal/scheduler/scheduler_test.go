package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls    atomic.Int32
	err      error
	deadline atomic.Bool
}

func (f *fakeRefresher) RefreshAll(ctx context.Context) error {
	f.calls.Add(1)
	_, ok := ctx.Deadline()
	f.deadline.Store(ok)
	return f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every now and then", &fakeRefresher{}, discard(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh schedule")
}

func TestNew_AcceptsSchedules(t *testing.T) {
	for _, spec := range []string{"@every 2m", "*/5 * * * *", "@hourly"} {
		_, err := New(spec, &fakeRefresher{}, discard(), 0)
		assert.NoError(t, err, spec)
	}
}

func TestRunOnce(t *testing.T) {
	t.Run("applies timeout", func(t *testing.T) {
		r := &fakeRefresher{}
		s, err := New("@every 1h", r, discard(), time.Minute)
		require.NoError(t, err)
		s.RunOnce(context.Background())
		assert.Equal(t, int32(1), r.calls.Load())
		assert.True(t, r.deadline.Load())
	})

	t.Run("no timeout", func(t *testing.T) {
		r := &fakeRefresher{}
		s, err := New("@every 1h", r, discard(), 0)
		require.NoError(t, err)
		s.RunOnce(context.Background())
		assert.False(t, r.deadline.Load())
	})

	t.Run("error is logged not returned", func(t *testing.T) {
		r := &fakeRefresher{err: errors.New("db down")}
		s, err := New("@every 1h", r, discard(), 0)
		require.NoError(t, err)
		assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
		assert.Equal(t, int32(1), r.calls.Load())
	})
}

func TestStartStop(t *testing.T) {
	r := &fakeRefresher{}
	s, err := New("@every 1h", r, discard(), 0)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(0), r.calls.Load())
}
