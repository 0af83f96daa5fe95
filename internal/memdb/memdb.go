// Package memdb is an in-memory reference implementation of the engine's
// backend adapter contract. It exists so the query core is testable
// end-to-end without a database process: tables are process-local maps,
// writes are immediately visible (read-your-writes), and changefeeds are
// published synchronously with each write. It is not a production store:
// there is no durability and table access is coarsely locked.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"reqlcore/engine"
	"reqlcore/feed"
	"reqlcore/reql"
)

const defaultPrimaryKey = "id"

// Store is the adapter. The zero value is not usable; call New.
type Store struct {
	mu   sync.RWMutex
	dbs  map[string]*database
	pool *ants.Pool
}

type database struct {
	tables map[string]*table
}

type table struct {
	pkey    string
	docs    map[string]map[string]interface{}
	order   []string // primary-key strings in insertion order
	indexes map[string]*index

	subMu   sync.Mutex
	subs    map[int64]*subscriber
	nextSub int64
}

type index struct {
	name  string
	field string
	fn    reql.Term // computed index; zero Term means simple field index
	ready bool
}

// New creates an empty store. fanout bounds the worker pool delivering
// change events to subscribers; 0 means a small default.
func New(fanout int) (*Store, error) {
	if fanout <= 0 {
		fanout = 8
	}
	pool, err := ants.NewPool(fanout)
	if err != nil {
		return nil, fmt.Errorf("memdb: fanout pool: %w", err)
	}
	return &Store{dbs: make(map[string]*database), pool: pool}, nil
}

// Close releases the fan-out pool and ends all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	for _, db := range s.dbs {
		for _, tbl := range db.tables {
			tbl.closeSubs()
		}
	}
	s.mu.Unlock()
	s.pool.Release()
}

// Name implements engine.Adapter.
func (s *Store) Name() string { return "memdb" }

// Lower implements engine.Adapter. The native form is the term itself
// wrapped in a plan; lowering only verifies every kind in the tree is
// supported.
func (s *Store) Lower(t reql.Term) (engine.NativeQuery, error) {
	var unsupported *engine.UnsupportedOperationError
	t.Walk(func(n reql.Term) bool {
		if n.Kind() == 0 {
			return true
		}
		if _, ok := supportedKinds[n.Kind()]; !ok {
			if unsupported == nil {
				unsupported = &engine.UnsupportedOperationError{Adapter: s.Name(), Kind: n.Kind()}
			}
			return false
		}
		return true
	})
	if unsupported != nil {
		return nil, unsupported
	}
	return &plan{root: t}, nil
}

// plan is the lowered form: the validated term tree.
type plan struct {
	root reql.Term
}

// Execute implements engine.Adapter.
func (s *Store) Execute(ctx context.Context, q engine.NativeQuery) (engine.Outcome, error) {
	p, ok := q.(*plan)
	if !ok {
		return engine.Outcome{}, fmt.Errorf("memdb: foreign native query %T", q)
	}
	if p.root.Kind() == reql.KindChanges {
		return engine.Outcome{}, fmt.Errorf("memdb: changefeeds must be opened via Subscribe")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := &evaluator{store: s, ctx: ctx, vars: make(map[float64]interface{})}
	v, err := ev.eval(p.root)
	if err != nil {
		return engine.Outcome{}, err
	}
	return outcomeOf(p.root, v)
}

// Subscribe implements engine.Adapter for CHANGES-rooted plans.
func (s *Store) Subscribe(ctx context.Context, q engine.NativeQuery) (feed.Subscription, error) {
	p, ok := q.(*plan)
	if !ok {
		return nil, fmt.Errorf("memdb: foreign native query %T", q)
	}
	if p.root.Kind() != reql.KindChanges {
		return nil, fmt.Errorf("memdb: not a changefeed query")
	}
	src := p.root.Args()[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, filter, err := s.resolveFeedSource(src)
	if err != nil {
		return nil, err
	}
	return tbl.subscribe(s.pool, filter), nil
}

// resolveFeedSource finds the table a CHANGES source selects, plus an
// optional per-document restriction (the key of a GET, the predicate of a
// FILTER). Sources the store cannot watch report UnsupportedOperation.
func (s *Store) resolveFeedSource(src reql.Term) (*table, *subFilter, error) {
	switch src.Kind() {
	case reql.KindTable:
		tbl, err := s.lookupTable(src)
		return tbl, nil, err
	case reql.KindGet:
		tbl, err := s.lookupTable(src.Args()[0])
		if err != nil {
			return nil, nil, err
		}
		ev := &evaluator{store: s, vars: make(map[float64]interface{})}
		key, err := ev.eval(src.Args()[1])
		if err != nil {
			return nil, nil, err
		}
		ks := keyString(key)
		return tbl, &subFilter{key: &ks}, nil
	case reql.KindFilter:
		tbl, err := s.lookupTable(src.Args()[0])
		if err != nil {
			return nil, nil, err
		}
		pred := src.Args()[1]
		return tbl, &subFilter{store: s, pred: &pred}, nil
	default:
		return nil, nil, &engine.UnsupportedOperationError{Adapter: s.Name(), Kind: src.Kind()}
	}
}

// lookupTable resolves a TABLE term to the table it names.
func (s *Store) lookupTable(t reql.Term) (*table, error) {
	if t.Kind() != reql.KindTable {
		return nil, fmt.Errorf("memdb: expected a table, got %s", t.Kind())
	}
	ev := &evaluator{store: s, vars: make(map[float64]interface{})}
	v, err := ev.eval(t)
	if err != nil {
		return nil, err
	}
	tv, ok := v.(*tableVal)
	if !ok {
		return nil, fmt.Errorf("memdb: expected a table, got %T", v)
	}
	return tv.tbl, nil
}

// ListDatabases implements engine.Adapter.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListTables implements engine.Adapter.
func (s *Store) ListTables(ctx context.Context, db string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[db]
	if !ok {
		return nil, fmt.Errorf("memdb: database %q does not exist", db)
	}
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListIndexes implements engine.Adapter.
func (s *Store) ListIndexes(ctx context.Context, db, tbl string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.findTable(db, tbl)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(t.indexes))
	for name := range t.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// WaitForIndexes implements engine.Adapter. memdb builds index entries
// synchronously, so waiting only flips the ready flag; querying an index
// before waiting on it is an execution failure, not a silent scan.
func (s *Store) WaitForIndexes(ctx context.Context, db, tbl string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.findTable(db, tbl)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		for _, idx := range t.indexes {
			idx.ready = true
		}
		return nil
	}
	for _, name := range names {
		idx, ok := t.indexes[name]
		if !ok {
			return fmt.Errorf("memdb: index %q does not exist on %s.%s", name, db, tbl)
		}
		idx.ready = true
	}
	return nil
}

func (s *Store) findTable(db, tbl string) (*table, error) {
	d, ok := s.dbs[db]
	if !ok {
		return nil, fmt.Errorf("memdb: database %q does not exist", db)
	}
	t, ok := d.tables[tbl]
	if !ok {
		return nil, fmt.Errorf("memdb: table %q does not exist in %q", tbl, db)
	}
	return t, nil
}

var supportedKinds = map[reql.Kind]struct{}{
	reql.KindMakeArray: {}, reql.KindMakeObj: {}, reql.KindVar: {},
	reql.KindDB: {}, reql.KindTable: {}, reql.KindDBCreate: {}, reql.KindDBDrop: {},
	reql.KindDBList: {}, reql.KindTableCreate: {}, reql.KindTableDrop: {}, reql.KindTableList: {},
	reql.KindIndexCreate: {}, reql.KindIndexDrop: {}, reql.KindIndexList: {}, reql.KindIndexWait: {},
	reql.KindGet: {}, reql.KindGetAll: {},
	reql.KindEq: {}, reql.KindNe: {}, reql.KindLt: {}, reql.KindLe: {}, reql.KindGt: {}, reql.KindGe: {},
	reql.KindNot: {}, reql.KindAnd: {}, reql.KindOr: {},
	reql.KindAdd: {}, reql.KindSub: {}, reql.KindMul: {}, reql.KindDiv: {}, reql.KindMod: {},
	reql.KindAppend: {}, reql.KindPrepend: {}, reql.KindSlice: {}, reql.KindSkip: {}, reql.KindLimit: {},
	reql.KindContains: {}, reql.KindNth: {}, reql.KindBracket: {}, reql.KindEqJoin: {}, reql.KindZip: {},
	reql.KindUnion: {}, reql.KindIsEmpty: {}, reql.KindDistinct: {}, reql.KindCount: {},
	reql.KindGroup: {}, reql.KindUngroup: {}, reql.KindSum: {}, reql.KindAvg: {}, reql.KindMin: {}, reql.KindMax: {},
	reql.KindGetField: {}, reql.KindKeys: {}, reql.KindValues: {}, reql.KindHasFields: {},
	reql.KindPluck: {}, reql.KindWithout: {}, reql.KindMerge: {},
	reql.KindBetween: {}, reql.KindFilter: {}, reql.KindMap: {}, reql.KindOrderBy: {}, reql.KindChanges: {},
	reql.KindUpdate: {}, reql.KindDelete: {}, reql.KindReplace: {}, reql.KindInsert: {},
	reql.KindFuncCall: {}, reql.KindFunc: {}, reql.KindAsc: {}, reql.KindDesc: {}, reql.KindDefault: {},
	reql.KindMatch: {}, reql.KindUpcase: {}, reql.KindDowncase: {}, reql.KindSplit: {},
	reql.KindISO8601: {}, reql.KindEpochTime: {}, reql.KindToEpochTime: {}, reql.KindNow: {},
	reql.KindInTimezone: {}, reql.KindDuring: {}, reql.KindDate: {},
	reql.KindYear: {}, reql.KindMonth: {}, reql.KindDay: {},
	reql.KindHours: {}, reql.KindMinutes: {}, reql.KindSeconds: {},
}
