package indexer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs atomic.Int32
	err  error
}

func (r *countingRunner) Run(context.Context) (*Result, error) {
	r.runs.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &Result{Documents: 1, Chunks: 2}, nil
}

func TestNewSchedulerValidatesSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"0 2 * * *", false},
		{"@hourly", false},
		{"@every 1m", false},
		{"not a schedule", true},
		{"0 0 0 * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			s, err := NewScheduler(tt.schedule, &countingRunner{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Entries())
		})
	}
}

func TestSchedulerRunOnceLogsFailures(t *testing.T) {
	r := &countingRunner{err: errors.New("embedding down")}
	s, err := NewScheduler("@hourly", r)
	require.NoError(t, err)
	s.runOnce()
	assert.Equal(t, int32(1), r.runs.Load())
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s, err := NewScheduler("@hourly", &countingRunner{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
