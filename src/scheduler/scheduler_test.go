package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReplacesByName(t *testing.T) {
	s := New(time.UTC)
	require.NoError(t, s.Register("report", "0 9 * * *", func() {}))
	require.NoError(t, s.Register("report", "30 18 * * *", func() {}))

	assert.Len(t, s.cron.Entries(), 1)
	assert.Len(t, s.Jobs(), 1)

	s.Unregister("report")
	assert.Empty(t, s.cron.Entries())
	assert.Empty(t, s.Jobs())
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Register("report", "every day", func() {}))
	assert.Empty(t, s.Jobs())
}

func TestRunExecutesJobsAndRecoversPanics(t *testing.T) {
	s := New(time.UTC)
	var calls int32
	require.NoError(t, s.Register("panicky", "@every 1s", func() { panic("boom") }))
	require.NoError(t, s.Register("counter", "@every 1s", func() { atomic.AddInt32(&calls, 1) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
