package framework

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls chan CallbackType
}

func (s *countingSource) Process(ctx context.Context, cb CallbackType) {
	s.calls <- cb
}

func TestLoopTriggerPollsDataSources(t *testing.T) {
	loop := NewLoop()
	loop.Interval = 0
	src := &countingSource{calls: make(chan CallbackType, 4)}
	loop.AddDataSource(src, CallbackPoll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	loop.Trigger()
	select {
	case cb := <-src.calls:
		require.Equal(t, CallbackPoll, cb)
	case <-time.After(time.Second):
		t.Fatal("data source not polled")
	}

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestLoopCallbacks(t *testing.T) {
	loop := NewLoop()
	src := &countingSource{calls: make(chan CallbackType, 4)}
	loop.AddDataSource(src, 0)
	loop.RunOnce(context.Background())
	require.Empty(t, src.calls)

	loop.EnableCallbacks(src, CallbackPoll)
	loop.RunOnce(context.Background())
	require.Len(t, src.calls, 1)
	<-src.calls

	loop.DisableCallbacks(src, CallbackPoll)
	loop.RunOnce(context.Background())
	require.Empty(t, src.calls)

	loop.EnableCallbacks(src, CallbackPoll)
	loop.RemoveDataSource(src)
	loop.RunOnce(context.Background())
	require.Empty(t, src.calls)
}

func TestLoopPostRunsBeforeDataSources(t *testing.T) {
	loop := NewLoop()
	var order []string
	loop.AddDataSource(ProcessFunc(func(ctx context.Context, cb CallbackType) {
		order = append(order, "poll")
	}), CallbackPoll)
	loop.Post(func(ctx context.Context) {
		require.Equal(t, Scheduler(loop), SchedulerFrom(ctx))
		order = append(order, "post1")
	})
	loop.Post(func(ctx context.Context) { order = append(order, "post2") })
	loop.RunOnce(context.Background())
	require.Equal(t, []string{"post1", "post2", "poll"}, order)

	order = nil
	loop.RunOnce(context.Background())
	require.Equal(t, []string{"poll"}, order)
}

func TestLoopTriggerCoalesces(t *testing.T) {
	loop := NewLoop()
	loop.Trigger()
	loop.Trigger()
	require.Len(t, loop.wakeUpCh, 1)
}
