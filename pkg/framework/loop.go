package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop is a single goroutine cooperative run loop. Each iteration runs the
// posted funcs and then polls every data source with CallbackPoll enabled.
// An iteration happens on Trigger or every Interval, whichever comes first.
type Loop struct {
	// Interval between idle iterations, 0 disables the ticker.
	Interval time.Duration

	sources []*dataSourceEntry
	runners []Runnable

	posted funcList
	lock   sync.Mutex

	wakeUpCh chan struct{}
}

type dataSourceEntry struct {
	ds        DataSource
	callbacks CallbackType
}

type funcList struct {
	head *funcItem
	tail *funcItem
}

type funcItem struct {
	fn   func(context.Context)
	next *funcItem
}

func (l *funcList) append(item *funcItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

func (l *funcList) splice(src *funcList) {
	l.head, l.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

var (
	loopCtxKey = &Loop{}
)

// SchedulerFrom gets the Scheduler running the current iteration.
func SchedulerFrom(ctx context.Context) Scheduler {
	return ctx.Value(loopCtxKey).(Scheduler)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: 100 * time.Millisecond,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddRunnable adds Runnable implementions started together with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// AddDataSource implements Scheduler.
func (l *Loop) AddDataSource(ds DataSource, callbacks CallbackType) {
	l.lock.Lock()
	l.sources = append(l.sources, &dataSourceEntry{ds: ds, callbacks: callbacks})
	l.lock.Unlock()
}

// RemoveDataSource unregisters a data source.
// RemoveDataSource, EnableCallbacks and DisableCallbacks identify the data
// source by comparison, so it must be a comparable value (e.g. a pointer).
func (l *Loop) RemoveDataSource(ds DataSource) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for n, ent := range l.sources {
		if ent.ds == ds {
			l.sources = append(l.sources[:n], l.sources[n+1:]...)
			return
		}
	}
}

// EnableCallbacks enables callbacks on a registered data source.
func (l *Loop) EnableCallbacks(ds DataSource, callbacks CallbackType) {
	l.updateCallbacks(ds, func(cur CallbackType) CallbackType { return cur | callbacks })
}

// DisableCallbacks disables callbacks on a registered data source.
func (l *Loop) DisableCallbacks(ds DataSource, callbacks CallbackType) {
	l.updateCallbacks(ds, func(cur CallbackType) CallbackType { return cur &^ callbacks })
}

func (l *Loop) updateCallbacks(ds DataSource, update func(CallbackType) CallbackType) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, ent := range l.sources {
		if ent.ds == ds {
			ent.callbacks = update(ent.callbacks)
			return
		}
	}
}

// Trigger implements Scheduler. Wakes are coalesced: triggering a loop which
// already has a wake pending is a no-op.
func (l *Loop) Trigger() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

// Post implements Scheduler.
func (l *Loop) Post(fn func(context.Context)) {
	l.lock.Lock()
	l.posted.append(&funcItem{fn: fn})
	l.lock.Unlock()
	l.Trigger()
}

func (l *Loop) wakeUp() chan struct{} {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	return l.wakeUpCh
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	wakeUpCh := l.wakeUp()
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	var tick <-chan time.Time
	if l.Interval > 0 {
		ticker := time.NewTicker(l.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			l.RunOnce(ctx)
		case <-wakeUpCh:
			l.RunOnce(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

// RunOnce runs a single iteration on the calling goroutine.
// It must not be called concurrently with Run.
func (l *Loop) RunOnce(ctx context.Context) {
	var posted funcList
	l.lock.Lock()
	posted.splice(&l.posted)
	sources := make([]dataSourceEntry, 0, len(l.sources))
	for _, ent := range l.sources {
		sources = append(sources, *ent)
	}
	l.lock.Unlock()

	ctx = context.WithValue(ctx, loopCtxKey, Scheduler(l))
	for item := posted.head; item != nil; item = item.next {
		item.fn(ctx)
	}
	for _, ent := range sources {
		if ent.callbacks&CallbackPoll != 0 {
			ent.ds.Process(ctx, CallbackPoll)
		}
	}
	if glog.V(4) {
		glog.Infof("loop iteration: %d sources", len(sources))
	}
}
