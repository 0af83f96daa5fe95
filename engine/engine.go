package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"reqlcore/feed"
	"reqlcore/reql"
	"reqlcore/result"
)

const defaultCacheSize = 128

// Runner executes query terms against one backend adapter. Concurrent Run
// calls are independent; the runner serializes nothing.
type Runner struct {
	adapter Adapter
	cache   *lru.Cache[string, NativeQuery]
}

// Option configures a Runner.
type Option func(*runnerConfig)

type runnerConfig struct {
	cacheSize int
}

// WithCacheSize sets the lowered-query cache capacity. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(c *runnerConfig) { c.cacheSize = n }
}

// New creates a Runner backed by the given adapter.
func New(adapter Adapter, opts ...Option) *Runner {
	cfg := runnerConfig{cacheSize: defaultCacheSize}
	for _, o := range opts {
		o(&cfg)
	}
	r := &Runner{adapter: adapter}
	if cfg.cacheSize > 0 {
		// lru.New only fails on a non-positive size
		r.cache, _ = lru.New[string, NativeQuery](cfg.cacheSize)
	}
	return r
}

// Run executes a query and returns a cursor over its results: one item for
// a scalar or write summary, the full sequence for a stream. A
// CHANGES-rooted query yields an unbounded cursor of serialized
// ValueChange events. Build-time validation failures surface here, before
// any adapter contact.
func (r *Runner) Run(ctx context.Context, q reql.Query) (Cursor, error) {
	t, err := q.Build()
	if err != nil {
		return nil, err
	}
	if t.IsFeed() {
		f, err := r.openFeed(ctx, t)
		if err != nil {
			return nil, err
		}
		return &feedCursor{ctx: ctx, f: f}, nil
	}
	native, err := r.lower(t)
	if err != nil {
		return nil, err
	}
	out, err := r.adapter.Execute(ctx, native)
	if err != nil {
		return nil, &ExecutionError{Adapter: r.adapter.Name(), Cause: err}
	}
	switch out.Kind {
	case OutcomeAtom:
		return newAtom(out.Atom), nil
	case OutcomeSequence:
		return newSequence(out.Sequence), nil
	case OutcomeWrite:
		return newAtom(out.Write), nil
	default:
		return nil, fmt.Errorf("engine: adapter %s returned unknown outcome kind %d", r.adapter.Name(), out.Kind)
	}
}

// RunWrite executes a write query and normalizes its summary.
func (r *Runner) RunWrite(ctx context.Context, q reql.Query) (result.Write, error) {
	t, err := q.Build()
	if err != nil {
		return result.Write{}, err
	}
	native, err := r.lower(t)
	if err != nil {
		return result.Write{}, err
	}
	out, err := r.adapter.Execute(ctx, native)
	if err != nil {
		return result.Write{}, &ExecutionError{Adapter: r.adapter.Name(), Cause: err}
	}
	raw := out.Write
	if out.Kind == OutcomeAtom {
		raw = out.Atom
	}
	if raw == nil {
		return result.Write{}, fmt.Errorf("engine: adapter %s returned no write summary", r.adapter.Name())
	}
	return result.ParseWrite(raw)
}

// RunFeed executes a CHANGES-rooted query and returns the live feed.
func (r *Runner) RunFeed(ctx context.Context, q reql.Query) (*feed.Feed, error) {
	t, err := q.Build()
	if err != nil {
		return nil, err
	}
	return r.openFeed(ctx, t)
}

// openFeed opens the subscription and, with include_initial, synthesizes
// the current matching set as the snapshot delivered ahead of live events.
func (r *Runner) openFeed(ctx context.Context, t reql.Term) (*feed.Feed, error) {
	if !t.IsFeed() {
		return nil, &reql.ValidationError{Op: "run_feed", Reason: "query is not a changefeed"}
	}
	opts, err := feedOptions(t)
	if err != nil {
		return nil, err
	}
	native, err := r.lower(t)
	if err != nil {
		return nil, err
	}
	sub, err := r.adapter.Subscribe(ctx, native)
	if err != nil {
		return nil, &ExecutionError{Adapter: r.adapter.Name(), Cause: err}
	}
	var snapshot []result.RawChange
	if includeInitial(t) {
		snapshot, err = r.initialSnapshot(ctx, t)
		if err != nil {
			_ = sub.Close()
			return nil, err
		}
	}
	return feed.Open(ctx, sub, snapshot, opts), nil
}

// initialSnapshot materializes the feed's source selection. The source is
// the CHANGES term's single child; it is executed against the same adapter
// the subscription was opened on.
func (r *Runner) initialSnapshot(ctx context.Context, t reql.Term) ([]result.RawChange, error) {
	src := t.Args()[0]
	native, err := r.lower(src)
	if err != nil {
		return nil, err
	}
	out, err := r.adapter.Execute(ctx, native)
	if err != nil {
		return nil, &ExecutionError{Adapter: r.adapter.Name(), Cause: err}
	}
	var docs []json.RawMessage
	switch out.Kind {
	case OutcomeSequence:
		docs = out.Sequence
	case OutcomeAtom:
		if out.Atom != nil && string(out.Atom) != "null" {
			docs = []json.RawMessage{out.Atom}
		}
	}
	snapshot := make([]result.RawChange, len(docs))
	for i, d := range docs {
		snapshot[i] = result.RawChange{NewVal: d}
	}
	return snapshot, nil
}

// lower translates a term, serving repeated executions of structurally
// identical terms from the cache.
func (r *Runner) lower(t reql.Term) (NativeQuery, error) {
	if r.cache == nil {
		return r.adapter.Lower(t)
	}
	fp, err := t.Fingerprint()
	if err != nil {
		return nil, err
	}
	if native, ok := r.cache.Get(fp); ok {
		return native, nil
	}
	native, err := r.adapter.Lower(t)
	if err != nil {
		return nil, err
	}
	r.cache.Add(fp, native)
	return native, nil
}

// feedOptions extracts validated changefeed options from a CHANGES term.
func feedOptions(t reql.Term) (feed.Options, error) {
	var opts feed.Options
	if v, ok := t.OptArg("squash"); ok {
		switch s := v.(type) {
		case bool:
			opts.Squash = s
		case int:
			opts.Squash = true
			opts.SquashWindow = time.Duration(float64(s) * float64(time.Second))
		case float64:
			opts.Squash = true
			opts.SquashWindow = time.Duration(s * float64(time.Second))
		}
	}
	if v, ok := t.OptArg("changefeed_queue_size"); ok {
		switch n := v.(type) {
		case int:
			opts.QueueSize = n
		case float64:
			opts.QueueSize = int(n)
		}
	}
	return opts, nil
}

func includeInitial(t reql.Term) bool {
	v, ok := t.OptArg("include_initial")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
