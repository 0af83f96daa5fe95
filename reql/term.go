package reql

import (
	"encoding/json"
	"fmt"
	"time"
)

// OptArgs carries optional arguments for a term, keyed by option name.
// Values may be plain Go values or Terms.
type OptArgs map[string]interface{}

// Term is an immutable node of the query expression tree.
// kind == 0 means the term is a raw datum (string, number, bool, nil).
// Every builder method returns a new Term wrapping the receiver as a child;
// no term is ever mutated in place, so a built query is safe to execute
// repeatedly and to share across concurrent callers.
type Term struct {
	kind  Kind
	datum interface{}
	args  []Term
	opts  OptArgs
	err   error
}

// datum wraps a raw Go value as a term. time.Time values are converted to
// the EPOCH_TIME pseudo-type so they survive JSON serialization.
func datum(v interface{}) Term {
	if t, ok := v.(time.Time); ok {
		return newTerm(KindEpochTime, []Term{{datum: float64(t.UnixNano()) / 1e9}}, nil)
	}
	return Term{datum: v}
}

// newTerm builds a compound term, propagating the first argument error.
func newTerm(kind Kind, args []Term, opts OptArgs) Term {
	t := Term{kind: kind, args: args, opts: opts}
	for _, a := range args {
		if a.err != nil {
			t.err = a.err
			break
		}
	}
	if t.err == nil {
		for _, v := range opts {
			if ot, ok := v.(Term); ok && ot.err != nil {
				t.err = ot.err
				break
			}
		}
	}
	return t
}

// invalidTerm returns a term carrying a build-time validation failure.
// The failure propagates through every later chain call and is surfaced by
// the engine before any backend contact.
func invalidTerm(err error) Term {
	return Term{err: err}
}

// expr converts an arbitrary Go value into a term. Terms and proxy types
// pass through; maps and slices are converted element-wise to MAKE_OBJ and
// MAKE_ARRAY so nested Terms inside them are preserved.
func expr(v interface{}) Term {
	switch val := v.(type) {
	case Term:
		return val
	case interface{ Build() (Term, error) }:
		t, err := val.Build()
		if err != nil {
			return invalidTerm(err)
		}
		return t
	case []interface{}:
		args := make([]Term, len(val))
		for i, item := range val {
			args[i] = expr(item)
		}
		return newTerm(KindMakeArray, args, nil)
	case map[string]interface{}:
		obj := make(OptArgs, len(val))
		plain := true
		for k, item := range val {
			t := expr(item)
			if t.kind != 0 || t.err != nil {
				plain = false
			}
			obj[k] = t
		}
		if plain {
			return Term{datum: val}
		}
		return newTerm(KindMakeObj, nil, obj)
	default:
		return datum(v)
	}
}

// Kind returns the node's kind tag; zero for raw datum terms.
func (t Term) Kind() Kind { return t.kind }

// Args returns the ordered child terms. The returned slice must not be
// modified.
func (t Term) Args() []Term { return t.args }

// Opts returns the term's option bag, or nil. The returned map must not be
// modified.
func (t Term) Opts() OptArgs { return t.opts }

// Datum returns the literal payload of a raw datum term.
func (t Term) Datum() interface{} { return t.datum }

// Err returns the first build-time validation failure recorded anywhere in
// the tree, or nil. Chains propagate the error, so checking the root is
// sufficient.
func (t Term) Err() error { return t.err }

// Build returns the term itself plus any recorded validation failure. It
// makes Term (and everything embedding it) satisfy the Query contract the
// engine executes.
func (t Term) Build() (Term, error) { return t, t.err }

// OptArg looks up an option by name.
func (t Term) OptArg(name string) (interface{}, bool) {
	v, ok := t.opts[name]
	return v, ok
}

// MarshalJSON serializes the term to the wire format. Datum terms serialize
// as their raw value; compound terms as [kind, [args...], opts?].
func (t Term) MarshalJSON() ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.kind == 0 {
		return json.Marshal(t.datum)
	}
	if t.kind == KindMakeObj && len(t.args) == 0 {
		// MAKE_OBJ carries its fields in the option bag
		return json.Marshal([]interface{}{int(t.kind), []Term{}, t.opts})
	}
	args := t.args
	if args == nil {
		args = []Term{}
	}
	parts := []interface{}{int(t.kind), args}
	if len(t.opts) > 0 {
		parts = append(parts, t.opts)
	}
	return json.Marshal(parts)
}

// Fingerprint returns a canonical encoding of the term, usable as a cache
// key: two independently built terms with identical kind/children/options
// produce the same fingerprint. It fails when the term carries a validation
// error.
func (t Term) Fingerprint() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// String renders the term tree for diagnostics.
func (t Term) String() string {
	if t.err != nil {
		return fmt.Sprintf("invalid(%v)", t.err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("unprintable(%v)", err)
	}
	return string(b)
}

// Visitor inspects a term during traversal. Returning false prunes the
// subtree below the visited node.
type Visitor func(t Term) bool

// Walk traverses the tree depth-first, pre-order: the node itself, then its
// arguments in order, then option values that are themselves terms (in
// sorted option-name order is not guaranteed; option order is unspecified).
func (t Term) Walk(visit Visitor) {
	if !visit(t) {
		return
	}
	for _, a := range t.args {
		a.Walk(visit)
	}
	for _, v := range t.opts {
		if ot, ok := v.(Term); ok {
			ot.Walk(visit)
		}
	}
}

// IsFeed reports whether the term is rooted at a CHANGES node, i.e. running
// it opens a changefeed rather than a one-shot query.
func (t Term) IsFeed() bool { return t.kind == KindChanges }

// Query is anything executable by the engine: a bare Term or any shape or
// proxy type embedding one.
type Query interface {
	Build() (Term, error)
}
