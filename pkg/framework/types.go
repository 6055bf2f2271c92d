package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// CallbackType selects when a DataSource is invoked by the Loop.
type CallbackType uint

const (
	// CallbackPoll invokes the data source once per loop iteration.
	CallbackPoll CallbackType = 1 << iota
)

// DataSource is processed on the loop goroutine.
type DataSource interface {
	Process(ctx context.Context, callbackType CallbackType)
}

// ProcessFunc is the func form of DataSource.
type ProcessFunc func(context.Context, CallbackType)

// Process implements DataSource.
func (f ProcessFunc) Process(ctx context.Context, callbackType CallbackType) {
	f(ctx, callbackType)
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// Scheduler is the part of the Loop visible to data sources.
// Trigger and Post are safe to call from any goroutine.
type Scheduler interface {
	// AddDataSource registers a data source with enabled callbacks.
	AddDataSource(ds DataSource, callbacks CallbackType)
	// Trigger requests a loop iteration as soon as possible.
	Trigger()
	// Post schedules fn to run on the loop goroutine in the next iteration.
	Post(fn func(context.Context))
}
