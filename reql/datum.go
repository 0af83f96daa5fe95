package reql

// Shape types classify a term by the capability set it statically offers.
// The hierarchy is composition, not inheritance: each shape embeds the
// widest shape whose full capability set it carries and adds (or narrows)
// the rest. The result shape of every operation is fixed by the operation
// kind and the input shape alone.

// Datum is a single-value shape: field access, default substitution,
// document reshaping, and sub-query application.
type Datum struct{ Term }

// Field accesses a field of the datum by name or sub-proxy.
func (d Datum) Field(key interface{}) AnyTerm { return AnyTerm{bracket(d.Term, key)} }

// Default substitutes fallback when the datum evaluates to null or a
// missing field. false, 0 and "" are kept as-is.
func (d Datum) Default(fallback interface{}) Datum {
	return Datum{op(KindDefault, d.Term, fallback)}
}

// Do applies fn to the datum, capturing the closure as a sub-term.
func (d Datum) Do(fn func(AnyTerm) interface{}) Datum {
	f := funcOf(1, func(args []AnyTerm) interface{} { return fn(args[0]) })
	return Datum{newTerm(KindFuncCall, []Term{f, d.Term}, nil)}
}

// Pluck keeps only the selected fields. See selector.go for the grammar.
func (d Datum) Pluck(selectors ...interface{}) Datum {
	return Datum{selectorOp(KindPluck, d.Term, selectors)}
}

// Without drops the selected fields.
func (d Datum) Without(selectors ...interface{}) Datum {
	return Datum{selectorOp(KindWithout, d.Term, selectors)}
}

// Merge overlays v onto the datum.
func (d Datum) Merge(v interface{}) Datum { return Datum{op(KindMerge, d.Term, v)} }

// HasFields tests the selected fields for presence and non-null value.
func (d Datum) HasFields(selectors ...interface{}) BoolTerm {
	return BoolTerm{selectorOp(KindHasFields, d.Term, selectors)}
}

// Append appends to an array-shaped datum. Applying it to a non-array
// fails at execution with a type mismatch.
func (d Datum) Append(v interface{}) Datum { return Datum{op(KindAppend, d.Term, v)} }

// Prepend prepends to an array-shaped datum.
func (d Datum) Prepend(v interface{}) Datum { return Datum{op(KindPrepend, d.Term, v)} }

// Value returns the datum as an untyped proxy for operator composition.
func (d Datum) Value() AnyTerm { return AnyTerm{d.Term} }

// SingleSelection is a datum that still points at its source row, so it
// additionally supports writes and a single-document changefeed.
type SingleSelection struct{ Datum }

// Update merges v (a patch document or a function of the current row) into
// the selected document.
func (s SingleSelection) Update(v interface{}, opts ...OptArgs) Datum {
	return Datum{writeTerm(KindUpdate, s.Term, v, mergeOpts(opts))}
}

// Replace fully overwrites the selected document with v.
func (s SingleSelection) Replace(v interface{}, opts ...OptArgs) Datum {
	return Datum{writeTerm(KindReplace, s.Term, v, mergeOpts(opts))}
}

// Delete removes the selected document.
func (s SingleSelection) Delete(opts ...OptArgs) Datum {
	o := mergeOpts(opts)
	if err := checkWriteOpts("delete", o); err != nil {
		return Datum{invalidTerm(err)}
	}
	return Datum{newTerm(KindDelete, []Term{s.Term}, o)}
}

// Changes opens a changefeed delivering every change to the selected
// document.
func (s SingleSelection) Changes(opts ...OptArgs) Feed {
	return changesTerm(s.Term, opts)
}

// writeTerm builds an UPDATE or REPLACE term; v may be a document or a
// function of the current row.
func writeTerm(kind Kind, recv Term, v interface{}, o OptArgs) Term {
	opName := kind.String()
	if err := checkWriteOpts(opName, o); err != nil {
		return invalidTerm(err)
	}
	var arg Term
	switch fn := v.(type) {
	case func(ObjectTerm) interface{}:
		arg = funcOf(1, func(args []AnyTerm) interface{} { return fn(ObjectTerm{args[0].Term}) })
	default:
		arg = expr(v)
	}
	return newTerm(kind, []Term{recv, arg}, o)
}

// changesTerm validates feed options and builds a CHANGES term.
func changesTerm(recv Term, opts []OptArgs) Feed {
	o := mergeOpts(opts)
	if err := checkChangesOpts(o); err != nil {
		return Feed{Stream{invalidTerm(err)}}
	}
	return Feed{Stream{newTerm(KindChanges, []Term{recv}, o)}}
}
