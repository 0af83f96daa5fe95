package reql

// Stream is a finite ordered sequence shape: transformation, ordering,
// aggregation, joins and changefeeds.
type Stream struct{ Term }

// StreamOf wraps an array-producing term as a stream.
func StreamOf(q Query) Stream {
	t, err := q.Build()
	if err != nil {
		return Stream{invalidTerm(err)}
	}
	return Stream{t}
}

// Map transforms every element. fn is a mapping function receiving a row
// proxy, or a constant document.
func (s Stream) Map(fn interface{}) Stream {
	return Stream{mapTerm(s.Term, fn)}
}

// Filter keeps elements matching pred: either a literal partial-document
// pattern (a conjunction of field equalities; a pattern field absent from
// the document means no match) or a predicate function returning a
// boolean proxy. Both forms lower to the same FILTER kind.
func (s Stream) Filter(pred interface{}, opts ...OptArgs) Stream {
	return Stream{filterTerm(s.Term, pred, opts)}
}

// OrderBy sorts ascending by default; wrap keys with Desc to reverse the
// comparator. Ties are broken by the backend's stable delivery order,
// preserved forward regardless of direction. Options: index, no_index.
func (s Stream) OrderBy(keys ...interface{}) Stream {
	return Stream{orderByTerm(s.Term, keys)}
}

// Slice selects the half-open element range [start, end).
func (s Stream) Slice(start, end int) Stream {
	return Stream{op(KindSlice, s.Term, start, end)}
}

// Skip drops the first n elements.
func (s Stream) Skip(n int) Stream { return Stream{op(KindSkip, s.Term, n)} }

// Limit keeps the first n elements.
func (s Stream) Limit(n int) Stream { return Stream{op(KindLimit, s.Term, n)} }

// Nth selects one element; negative n counts from the end.
func (s Stream) Nth(n int) Datum { return Datum{op(KindNth, s.Term, n)} }

// Pluck reshapes every element to the selected fields.
func (s Stream) Pluck(selectors ...interface{}) Stream {
	return Stream{selectorOp(KindPluck, s.Term, selectors)}
}

// Without drops the selected fields from every element.
func (s Stream) Without(selectors ...interface{}) Stream {
	return Stream{selectorOp(KindWithout, s.Term, selectors)}
}

// HasFields keeps elements that have all selected fields non-null.
func (s Stream) HasFields(selectors ...interface{}) Stream {
	return Stream{selectorOp(KindHasFields, s.Term, selectors)}
}

// Group partitions the stream by one or more fields.
func (s Stream) Group(fields ...string) GroupedStream {
	if len(fields) == 0 {
		return GroupedStream{validationErr("group", "at least one grouping field is required")}
	}
	args := make([]interface{}, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return GroupedStream{op(KindGroup, s.Term, args...)}
}

// Count counts the elements.
func (s Stream) Count() NumberTerm { return NumberTerm{op(KindCount, s.Term)} }

// Sum totals the values of field across the stream; with no field the
// elements themselves are summed.
func (s Stream) Sum(field ...string) NumberTerm {
	return NumberTerm{aggTerm(KindSum, s.Term, field)}
}

// Avg averages the values of field across the stream.
func (s Stream) Avg(field ...string) NumberTerm {
	return NumberTerm{aggTerm(KindAvg, s.Term, field)}
}

// Min returns the element minimizing field (or the element itself).
func (s Stream) Min(field ...string) Datum { return Datum{aggTerm(KindMin, s.Term, field)} }

// Max returns the element maximizing field (or the element itself).
func (s Stream) Max(field ...string) Datum { return Datum{aggTerm(KindMax, s.Term, field)} }

// Distinct removes duplicate elements.
func (s Stream) Distinct() Stream { return Stream{op(KindDistinct, s.Term)} }

// IsEmpty tests whether the stream has no elements.
func (s Stream) IsEmpty() BoolTerm { return BoolTerm{op(KindIsEmpty, s.Term)} }

// Contains tests whether the stream contains v.
func (s Stream) Contains(v interface{}) BoolTerm { return BoolTerm{op(KindContains, s.Term, v)} }

// EqJoin joins each element against right by equality between the
// element's field and right's primary key (or the index named in opts).
// The result elements are {left, right} pairs; see Zip.
func (s Stream) EqJoin(field string, right Table, opts ...OptArgs) Stream {
	o := mergeOpts(opts)
	for k, v := range o {
		if k != optIndex {
			return Stream{validationErr("eq_join", "unknown option %q", k)}
		}
		if _, ok := v.(string); !ok {
			return Stream{validationErr("eq_join", "index must be a string, got %T", v)}
		}
	}
	return Stream{newTerm(KindEqJoin, []Term{s.Term, datum(field), right.Term}, o)}
}

// Zip merges the left and right halves of a join result into one document.
func (s Stream) Zip() Stream { return Stream{op(KindZip, s.Term)} }

// Union concatenates this stream with another sequence.
func (s Stream) Union(other interface{}) Stream {
	return Stream{op(KindUnion, s.Term, other)}
}

// Changes opens a changefeed over the stream. Options: squash,
// changefeed_queue_size, include_initial.
func (s Stream) Changes(opts ...OptArgs) Feed { return changesTerm(s.Term, opts) }

// GroupedStream is the result of Group: aggregations apply per group and
// yield a mapping from group key to aggregate.
type GroupedStream struct{ Term }

func (g GroupedStream) Count() Datum            { return Datum{op(KindCount, g.Term)} }
func (g GroupedStream) Sum(field ...string) Datum { return Datum{aggTerm(KindSum, g.Term, field)} }
func (g GroupedStream) Avg(field ...string) Datum { return Datum{aggTerm(KindAvg, g.Term, field)} }
func (g GroupedStream) Min(field ...string) Datum { return Datum{aggTerm(KindMin, g.Term, field)} }
func (g GroupedStream) Max(field ...string) Datum { return Datum{aggTerm(KindMax, g.Term, field)} }

// Ungroup flattens the grouping into a stream of {group, reduction} docs.
func (g GroupedStream) Ungroup() Stream { return Stream{op(KindUngroup, g.Term)} }

// filterTerm lowers both filter forms to the same FILTER kind.
func filterTerm(recv Term, pred interface{}, opts []OptArgs) Term {
	o := mergeOpts(opts)
	for k := range o {
		if k != "default" {
			return validationErr("filter", "unknown option %q", k)
		}
	}
	var p Term
	switch fn := pred.(type) {
	case func(ObjectTerm) BoolTerm:
		p = funcOf(1, func(args []AnyTerm) interface{} { return fn(ObjectTerm{args[0].Term}) })
	case func(ObjectTerm) interface{}:
		p = funcOf(1, func(args []AnyTerm) interface{} { return fn(ObjectTerm{args[0].Term}) })
	case map[string]interface{}:
		p = expr(fn)
	case Term:
		p = fn
	case BoolTerm:
		p = fn.Term
	default:
		return validationErr("filter", "predicate must be a pattern document or function, got %T", pred)
	}
	return newTerm(KindFilter, []Term{recv, p}, o)
}

// mapTerm lowers a mapping function or constant to a MAP term.
func mapTerm(recv Term, fn interface{}) Term {
	var m Term
	switch f := fn.(type) {
	case func(ObjectTerm) interface{}:
		m = funcOf(1, func(args []AnyTerm) interface{} { return f(ObjectTerm{args[0].Term}) })
	case func(AnyTerm) interface{}:
		m = funcOf(1, func(args []AnyTerm) interface{} { return f(args[0]) })
	case Term:
		m = f
	default:
		m = expr(fn)
	}
	return newTerm(KindMap, []Term{recv, m}, nil)
}

// orderByTerm separates sort keys from trailing option bags and validates
// both.
func orderByTerm(recv Term, keys []interface{}) Term {
	args := []Term{recv}
	var opts []OptArgs
	for _, k := range keys {
		if o, ok := k.(OptArgs); ok {
			opts = append(opts, o)
			continue
		}
		args = append(args, orderKeyTerm(k))
	}
	o := mergeOpts(opts)
	if err := checkOrderByOpts(o); err != nil {
		return invalidTerm(err)
	}
	if len(args) == 1 {
		if _, ok := o[optIndex]; !ok {
			return validationErr("order_by", "at least one sort key or an index is required")
		}
	}
	return newTerm(KindOrderBy, args, o)
}

// aggTerm builds an aggregation term with an optional field argument.
func aggTerm(kind Kind, recv Term, field []string) Term {
	if len(field) == 0 {
		return newTerm(kind, []Term{recv}, nil)
	}
	if len(field) > 1 {
		return validationErr(kind.String(), "at most one field is allowed")
	}
	return newTerm(kind, []Term{recv, datum(field[0])}, nil)
}
