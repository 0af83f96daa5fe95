// Package feed manages long-lived change subscriptions: ordering, squash
// coalescing, buffering and backpressure for ValueChange events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reqlcore/result"
)

// State is the lifecycle phase of a feed.
type State int32

const (
	StateOpening State = iota + 1
	StateStreaming
	StateDraining
	StateErroring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateErroring:
		return "erroring"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Subscription is the adapter-side event source for one feed.
// Next blocks until an event is available, the subscription ends (io.EOF),
// or ctx is done.
type Subscription interface {
	Next(ctx context.Context) (result.RawChange, error)
	Close() error
}

// Options configures one feed.
type Options struct {
	// Squash coalesces rapid changes to the same document within a time
	// window into one net event. Window 0 with Squash set uses
	// DefaultSquashWindow.
	Squash       bool
	SquashWindow time.Duration

	// QueueSize bounds the undelivered-event buffer. Exceeding it is a
	// fatal failure for the feed, never a silent drop. 0 means
	// DefaultQueueSize.
	QueueSize int
}

const (
	DefaultSquashWindow = 500 * time.Millisecond
	DefaultQueueSize    = 100
)

// ErrClosed is returned by Next after the feed has fully closed.
var ErrClosed = errors.New("feed: closed")

// FatalError terminates a feed: the error is delivered in-band as a final
// ValueChange event, then the feed closes. Non-fatal feed errors are
// ordinary events and do not carry this type.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string { return "feed: " + e.Reason }

// Feed is a live change subscription.
//
// State machine: Opening -> Streaming -> (Draining | Erroring) -> Closed.
// Events for the same document arrive in causal write order; no ordering
// across documents is guaranteed beyond backend delivery order.
type Feed struct {
	sub   Subscription
	opts  Options
	out   chan result.ValueChange
	state atomic.Int32

	cancel context.CancelFunc
	group  *errgroup.Group

	mu         sync.Mutex
	fatal      *FatalError
	fatalSent  bool
	pending    map[string]*pendingChange
	pendingSeq []string
}

type pendingChange struct {
	oldVal result.RawChange
	newVal result.RawChange
}

// Open starts a feed over sub. snapshot, when non-nil, is the current
// matching set; it is delivered first, as synthetic insert events, before
// any live event.
func Open(ctx context.Context, sub Subscription, snapshot []result.RawChange, opts Options) *Feed {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Squash && opts.SquashWindow <= 0 {
		opts.SquashWindow = DefaultSquashWindow
	}
	fctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(fctx)
	f := &Feed{
		sub:    sub,
		opts:   opts,
		out:    make(chan result.ValueChange, opts.QueueSize),
		cancel: cancel,
		group:  g,
	}
	f.state.Store(int32(StateOpening))

	events := make(chan result.RawChange)
	g.Go(func() error { return f.pump(gctx, events) })
	g.Go(func() error { return f.coordinate(gctx, events, snapshot) })
	return f
}

// State returns the feed's current lifecycle phase.
func (f *Feed) State() State { return State(f.state.Load()) }

// Next returns the next change event. After the feed closes it returns a
// final fatal error event if one is owed, then ErrClosed.
func (f *Feed) Next(ctx context.Context) (result.ValueChange, error) {
	select {
	case <-ctx.Done():
		return result.ValueChange{}, ctx.Err()
	case ev, ok := <-f.out:
		if ok {
			return ev, nil
		}
		return f.afterClose()
	}
}

// afterClose hands out the owed fatal error event exactly once.
func (f *Feed) afterClose() (result.ValueChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fatal != nil && !f.fatalSent {
		f.fatalSent = true
		f.state.Store(int32(StateClosed))
		return result.ValueChange{Err: f.fatal.Error()}, nil
	}
	f.state.Store(int32(StateClosed))
	return result.ValueChange{}, ErrClosed
}

// Close stops the feed gracefully: the backend subscription is released,
// events already buffered stay readable through Next until exhausted.
func (f *Feed) Close() error {
	if s := f.State(); s == StateStreaming || s == StateOpening {
		f.state.Store(int32(StateDraining))
	}
	f.cancel()
	err := f.group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// CloseNow tears the feed down immediately, discarding buffered events.
func (f *Feed) CloseNow() error {
	err := f.Close()
	for {
		select {
		case _, ok := <-f.out:
			if !ok {
				f.state.Store(int32(StateClosed))
				return err
			}
		default:
			f.state.Store(int32(StateClosed))
			return err
		}
	}
}

// Err returns the fatal error that terminated the feed, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fatal == nil {
		return nil
	}
	return f.fatal
}

// pump reads the subscription and forwards raw events to the coordinator.
func (f *Feed) pump(ctx context.Context, events chan<- result.RawChange) error {
	defer close(events)
	for {
		rc, err := f.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			f.setFatal("subscription lost: " + err.Error())
			return nil
		}
		select {
		case events <- rc:
		case <-ctx.Done():
			return nil
		}
	}
}

// coordinate owns the outbound queue: it delivers the initial snapshot,
// applies squashing, enforces the queue bound, and closes out on exit.
func (f *Feed) coordinate(ctx context.Context, events <-chan result.RawChange, snapshot []result.RawChange) error {
	defer f.shutdown()

	for _, rc := range snapshot {
		// the snapshot is state, not change: synthesize inserts
		ev := result.MapChange(result.RawChange{Key: rc.Key, NewVal: rc.NewVal})
		if !f.deliver(ev) {
			return nil
		}
	}
	f.state.CompareAndSwap(int32(StateOpening), int32(StateStreaming))

	var tick <-chan time.Time
	var ticker *time.Ticker
	if f.opts.Squash {
		ticker = time.NewTicker(f.opts.SquashWindow)
		defer ticker.Stop()
		tick = ticker.C
		f.pending = make(map[string]*pendingChange)
	}

	for {
		select {
		case <-ctx.Done():
			f.flushPending()
			return nil
		case <-tick:
			if !f.flushPending() {
				return nil
			}
		case rc, ok := <-events:
			if !ok {
				f.flushPending()
				return nil
			}
			if !f.handle(rc) {
				return nil
			}
		}
	}
}

// handle routes one live event; returns false when the feed must stop.
func (f *Feed) handle(rc result.RawChange) bool {
	if rc.Err != "" {
		if rc.Fatal {
			f.setFatal(rc.Err)
			return false
		}
		// non-fatal errors are delivered in-band and the feed continues
		return f.deliver(result.MapChange(rc))
	}
	if !f.opts.Squash {
		return f.deliver(result.MapChange(rc))
	}
	if p, ok := f.pending[rc.Key]; ok {
		// net effect: first old state vs last new state in the window
		p.newVal = rc
		return true
	}
	f.pending[rc.Key] = &pendingChange{oldVal: rc, newVal: rc}
	f.pendingSeq = append(f.pendingSeq, rc.Key)
	return true
}

// flushPending emits the net change per document collected in the current
// squash window, in arrival order. A document inserted then deleted inside
// the window collapses to no event; a change back to the original state
// likewise.
func (f *Feed) flushPending() bool {
	for _, key := range f.pendingSeq {
		p, ok := f.pending[key]
		if !ok {
			continue
		}
		ev := result.MapChange(result.RawChange{
			Key:    key,
			OldVal: p.oldVal.OldVal,
			NewVal: p.newVal.NewVal,
			Err:    p.newVal.Err,
		})
		if ev.OldVal == nil && ev.NewVal == nil && ev.Err == "" {
			continue
		}
		if ev.Err == "" && string(ev.OldVal) == string(ev.NewVal) {
			continue
		}
		if !f.deliver(ev) {
			return false
		}
	}
	f.pending = make(map[string]*pendingChange)
	f.pendingSeq = f.pendingSeq[:0]
	return true
}

// deliver enqueues one event. A full queue is a fatal backpressure
// failure, never a silent drop.
func (f *Feed) deliver(ev result.ValueChange) bool {
	select {
	case f.out <- ev:
		return true
	default:
		f.setFatal(fmt.Sprintf("backpressure: changefeed queue size %d exceeded", f.opts.QueueSize))
		return false
	}
}

func (f *Feed) setFatal(reason string) {
	f.mu.Lock()
	if f.fatal == nil {
		f.fatal = &FatalError{Reason: reason}
		f.state.Store(int32(StateErroring))
	}
	f.mu.Unlock()
	f.cancel()
}

// shutdown releases the subscription and seals the queue. Buffered events
// remain readable; Next reports the owed fatal event, then ErrClosed.
func (f *Feed) shutdown() {
	_ = f.sub.Close()
	close(f.out)
	if f.State() != StateErroring {
		f.state.Store(int32(StateDraining))
	}
}
