package memdb

import (
	"context"
	"io"
	"sync"

	"github.com/panjf2000/ants/v2"

	"reqlcore/reql"
	"reqlcore/result"
)

// subFilter narrows a table subscription to one document (by key) or to
// documents matching a filter predicate. nil means the whole table.
type subFilter struct {
	key   *string
	pred  *reql.Term
	store *Store
}

// wants reports which sides of a change belong to this subscription's set:
// oldIn when the previous state was in it, newIn when the new state is. A
// document updated out of the set is thus delivered delete-shaped, and one
// updated into it insert-shaped. Predicate failures become non-fatal
// in-band error events.
func (f *subFilter) wants(e *evaluator, key string, old, new map[string]interface{}) (oldIn, newIn bool, err error) {
	if f == nil {
		return old != nil, new != nil, nil
	}
	if f.key != nil {
		if key != *f.key {
			return false, false, nil
		}
		return old != nil, new != nil, nil
	}
	pred, err := e.predicate(*f.pred)
	if err != nil {
		return false, false, err
	}
	if old != nil {
		if oldIn, err = pred(old); err != nil {
			return false, false, err
		}
	}
	if new != nil {
		if newIn, err = pred(new); err != nil {
			return false, false, err
		}
	}
	return oldIn, newIn, nil
}

// subscriber is one live table subscription. Writes stage events under the
// store lock; a pool worker moves staged events to the delivery queue. Only
// one drain runs per subscriber at a time, so per-document order is kept.
type subscriber struct {
	tbl    *table
	id     int64
	filter *subFilter
	pool   *ants.Pool

	mu       sync.Mutex
	staged   []result.RawChange
	queue    []result.RawChange
	draining bool
	closed   bool
	notify   chan struct{}
}

// subscribe registers a new subscriber. Caller holds the store lock.
func (t *table) subscribe(pool *ants.Pool, filter *subFilter) *subscriber {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.nextSub++
	sub := &subscriber{
		tbl:    t,
		id:     t.nextSub,
		filter: filter,
		pool:   pool,
		notify: make(chan struct{}, 1),
	}
	t.subs[sub.id] = sub
	return sub
}

// closeSubs ends every subscription, e.g. on table drop.
func (t *table) closeSubs() {
	t.subMu.Lock()
	subs := make([]*subscriber, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.subMu.Unlock()
	for _, sub := range subs {
		sub.end()
	}
}

// publish routes one document change to the table's subscribers. Called
// with the store lock held, from the write that caused the change.
func (e *evaluator) publish(tbl *table, key string, old, new map[string]interface{}) {
	tbl.subMu.Lock()
	subs := make([]*subscriber, 0, len(tbl.subs))
	for _, sub := range tbl.subs {
		subs = append(subs, sub)
	}
	tbl.subMu.Unlock()
	if len(subs) == 0 {
		return
	}

	var oldRaw, newRaw []byte
	if old != nil {
		oldRaw, _ = encodeValue(old)
	}
	if new != nil {
		newRaw, _ = encodeValue(new)
	}
	for _, sub := range subs {
		oldIn, newIn, err := sub.filter.wants(e, key, old, new)
		if err != nil {
			sub.offer(result.RawChange{Key: key, Err: err.Error()})
			continue
		}
		if !oldIn && !newIn {
			continue
		}
		rc := result.RawChange{Key: key}
		if oldIn {
			rc.OldVal = oldRaw
		}
		if newIn {
			rc.NewVal = newRaw
		}
		sub.offer(rc)
	}
}

// offer stages an event and schedules a drain if none is running.
func (s *subscriber) offer(rc result.RawChange) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.staged = append(s.staged, rc)
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()
	if start {
		if err := s.pool.Submit(s.drain); err != nil {
			// pool released; deliver inline so nothing is lost
			s.drain()
		}
	}
}

// drain moves staged events to the delivery queue in arrival order.
func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		if len(s.staged) == 0 || s.closed {
			s.draining = false
			s.mu.Unlock()
			return
		}
		s.queue = append(s.queue, s.staged...)
		s.staged = s.staged[:0]
		s.mu.Unlock()
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Next implements feed.Subscription.
func (s *subscriber) Next(ctx context.Context) (result.RawChange, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			rc := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return rc, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return result.RawChange{}, io.EOF
		}
		select {
		case <-ctx.Done():
			return result.RawChange{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close implements feed.Subscription: it deregisters from the table.
func (s *subscriber) Close() error {
	s.tbl.subMu.Lock()
	delete(s.tbl.subs, s.id)
	s.tbl.subMu.Unlock()
	s.end()
	return nil
}

// end seals the subscriber; buffered events stay readable until Next
// reports io.EOF.
func (s *subscriber) end() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
