package reql

// Selection is a stream whose elements still point at their source rows,
// so it additionally supports writes, and narrowing it keeps that link:
// filter, orderBy and slicing return Selections, nth returns a
// SingleSelection.
type Selection struct{ Stream }

// Filter keeps matching rows; the result is still writable.
func (s Selection) Filter(pred interface{}, opts ...OptArgs) Selection {
	return Selection{Stream{filterTerm(s.Term, pred, opts)}}
}

// OrderBy sorts the selection; see Stream.OrderBy for semantics.
func (s Selection) OrderBy(keys ...interface{}) Selection {
	return Selection{Stream{orderByTerm(s.Term, keys)}}
}

// Slice selects the half-open row range [start, end).
func (s Selection) Slice(start, end int) Selection {
	return Selection{Stream{op(KindSlice, s.Term, start, end)}}
}

// Skip drops the first n rows.
func (s Selection) Skip(n int) Selection { return Selection{Stream{op(KindSkip, s.Term, n)}} }

// Limit keeps the first n rows.
func (s Selection) Limit(n int) Selection { return Selection{Stream{op(KindLimit, s.Term, n)}} }

// Nth selects a single row, still pointing at its source document.
func (s Selection) Nth(n int) SingleSelection {
	return SingleSelection{Datum{op(KindNth, s.Term, n)}}
}

// Update merges v into every selected row. v may be a patch document or a
// function of the current row. Option: return_changes.
func (s Selection) Update(v interface{}, opts ...OptArgs) Datum {
	return Datum{writeTerm(KindUpdate, s.Term, v, mergeOpts(opts))}
}

// Replace fully overwrites every selected row.
func (s Selection) Replace(v interface{}, opts ...OptArgs) Datum {
	return Datum{writeTerm(KindReplace, s.Term, v, mergeOpts(opts))}
}

// Delete removes every selected row.
func (s Selection) Delete(opts ...OptArgs) Datum {
	o := mergeOpts(opts)
	if err := checkWriteOpts("delete", o); err != nil {
		return Datum{invalidTerm(err)}
	}
	return Datum{newTerm(KindDelete, []Term{s.Term}, o)}
}
