package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWarmer struct {
	calls atomic.Int32
	ran   chan struct{}
	n     int
	err   error
}

func (f *fakeWarmer) WarmKits(ctx context.Context) (int, error) {
	if f.calls.Add(1) == 1 && f.ran != nil {
		close(f.ran)
	}
	return f.n, f.err
}

func TestSchedulerRunsImmediately(t *testing.T) {
	w := &fakeWarmer{ran: make(chan struct{}), n: 3}
	s := New(time.Hour, w, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-w.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh job did not run")
	}
	assert.Len(t, s.scheduler.Jobs(), 1)
}

func TestSchedulerDisabled(t *testing.T) {
	w := &fakeWarmer{}
	s := New(0, w, nil)
	require.NoError(t, s.Start())
	s.Stop()

	assert.Empty(t, s.scheduler.Jobs())
	assert.EqualValues(t, 0, w.calls.Load())
}

func TestSchedulerRunLogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	s := New(time.Hour, &fakeWarmer{n: 2}, zap.New(core))
	s.run()
	require.Equal(t, 1, logs.FilterMessage("scheduler: completed irradiance refresh job").Len())

	s = New(time.Hour, &fakeWarmer{n: 1, err: errors.New("deadline")}, zap.New(core))
	s.run()
	assert.Equal(t, 1, logs.FilterMessage("scheduler: irradiance refresh interrupted").Len())
}

func TestSchedulerStopCancelsRun(t *testing.T) {
	s := New(time.Hour, &fakeWarmer{}, nil)
	s.Stop()
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
