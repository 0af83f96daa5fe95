// Package engine resolves query terms against a pluggable backend adapter,
// producing one-shot cursors or live changefeeds.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"reqlcore/feed"
	"reqlcore/reql"
)

// NativeQuery is a backend's lowered representation of a term tree. The
// engine treats it as opaque.
type NativeQuery interface{}

// OutcomeKind tags the shape of an execution outcome.
type OutcomeKind int

const (
	// OutcomeAtom is a single scalar or document.
	OutcomeAtom OutcomeKind = iota + 1
	// OutcomeSequence is a finite ordered sequence.
	OutcomeSequence
	// OutcomeWrite is a write summary, normalized by the result mapper.
	OutcomeWrite
)

// Outcome is the result of executing one lowered query.
type Outcome struct {
	Kind     OutcomeKind
	Atom     json.RawMessage
	Sequence []json.RawMessage
	Write    json.RawMessage
}

// Adapter is the boundary the engine depends on. Implementations translate
// lowered terms into a concrete database's native operations. Any mutual
// exclusion a backend needs is the adapter's responsibility; the engine
// only ever asks it to execute a lowered term or open a subscription.
type Adapter interface {
	// Name identifies the adapter in errors.
	Name() string

	// Lower translates a term tree into the backend's native form. It must
	// be deterministic and total over the supported kind set, returning
	// UnsupportedOperationError for kinds the backend cannot express.
	Lower(t reql.Term) (NativeQuery, error)

	// Execute runs a lowered one-shot query.
	Execute(ctx context.Context, q NativeQuery) (Outcome, error)

	// Subscribe opens a change subscription for a CHANGES-rooted query.
	Subscribe(ctx context.Context, q NativeQuery) (feed.Subscription, error)

	// Direct passthroughs.
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, db string) ([]string, error)
	ListIndexes(ctx context.Context, db, table string) ([]string, error)
	WaitForIndexes(ctx context.Context, db, table string, names []string) error
}

// UnsupportedOperationError reports a term kind the adapter cannot lower.
type UnsupportedOperationError struct {
	Adapter string
	Kind    reql.Kind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("engine: adapter %s does not support %s", e.Adapter, e.Kind)
}

// ExecutionError reports a lowered query the backend rejected or failed.
// The engine never retries; retry policy belongs to the adapter or caller.
type ExecutionError struct {
	Adapter string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("engine: adapter %s: %v", e.Adapter, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }
