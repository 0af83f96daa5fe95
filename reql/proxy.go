package reql

import (
	"sync/atomic"
	"time"
)

// Value proxies wrap a Term behind a static type tag. Operators never
// compute anything: each call captures a new Term with the receiver as the
// first argument. The proxy type of the result is determined by the
// operator alone (gt always yields a BoolTerm, add on a NumberTerm yields a
// NumberTerm), never by inspecting runtime values.

// AnyTerm is a proxy whose underlying type is unknown until execution.
type AnyTerm struct{ Term }

// BoolTerm is a boolean-typed proxy.
type BoolTerm struct{ Term }

// NumberTerm is a number-typed proxy.
type NumberTerm struct{ Term }

// StringTerm is a string-typed proxy.
type StringTerm struct{ Term }

// TimeTerm is a date/time-typed proxy.
type TimeTerm struct{ Term }

// ArrayTerm is an array-typed proxy.
type ArrayTerm struct{ Term }

// ObjectTerm is an object-typed proxy.
type ObjectTerm struct{ Term }

// Expr wraps an arbitrary Go value or Term as an untyped proxy.
func Expr(v interface{}) AnyTerm { return AnyTerm{expr(v)} }

// Bool wraps a Go bool as a boolean proxy.
func Bool(v bool) BoolTerm { return BoolTerm{datum(v)} }

// Number wraps a Go number as a number proxy.
func Number(v float64) NumberTerm { return NumberTerm{datum(v)} }

// String wraps a Go string as a string proxy.
func String(v string) StringTerm { return StringTerm{datum(v)} }

// Time wraps a Go time.Time as a time proxy.
func Time(v time.Time) TimeTerm { return TimeTerm{datum(v)} }

// Now captures the server-side current time.
func Now() TimeTerm { return TimeTerm{newTerm(KindNow, nil, nil)} }

// ISO8601 builds a time proxy from an ISO 8601 string.
func ISO8601(s string) TimeTerm {
	return TimeTerm{newTerm(KindISO8601, []Term{datum(s)}, nil)}
}

// EpochTime builds a time proxy from seconds since epoch.
func EpochTime(sec float64) TimeTerm {
	return TimeTerm{newTerm(KindEpochTime, []Term{datum(sec)}, nil)}
}

// Array wraps the given items as an array proxy.
func Array(items ...interface{}) ArrayTerm {
	args := make([]Term, len(items))
	for i, item := range items {
		args[i] = expr(item)
	}
	return ArrayTerm{newTerm(KindMakeArray, args, nil)}
}

// Object wraps a Go map as an object proxy.
func Object(fields map[string]interface{}) ObjectTerm {
	return ObjectTerm{expr(fields)}
}

// op builds an operator term with the receiver as first argument.
func op(kind Kind, recv Term, vs ...interface{}) Term {
	args := make([]Term, 0, len(vs)+1)
	args = append(args, recv)
	for _, v := range vs {
		args = append(args, expr(v))
	}
	return newTerm(kind, args, nil)
}

// --- universal operators ---

func (t AnyTerm) Eq(v interface{}) BoolTerm { return BoolTerm{op(KindEq, t.Term, v)} }
func (t AnyTerm) Ne(v interface{}) BoolTerm { return BoolTerm{op(KindNe, t.Term, v)} }
func (t AnyTerm) Gt(v interface{}) BoolTerm { return BoolTerm{op(KindGt, t.Term, v)} }
func (t AnyTerm) Ge(v interface{}) BoolTerm { return BoolTerm{op(KindGe, t.Term, v)} }
func (t AnyTerm) Lt(v interface{}) BoolTerm { return BoolTerm{op(KindLt, t.Term, v)} }
func (t AnyTerm) Le(v interface{}) BoolTerm { return BoolTerm{op(KindLe, t.Term, v)} }

// Field accesses a field by static name or sub-proxy. Nested access
// composes left to right.
func (t AnyTerm) Field(key interface{}) AnyTerm { return AnyTerm{bracket(t.Term, key)} }

// Index accesses an array element by position. Arrays are indexed through a
// dedicated method rather than Field so the operation is explicit about the
// receiver being a sequence.
func (t AnyTerm) Index(i int) AnyTerm {
	return AnyTerm{op(KindNth, t.Term, i)}
}

// Default substitutes fallback only when the receiver evaluates to null or
// a missing field, never when it evaluates to false, 0 or "".
func (t AnyTerm) Default(fallback interface{}) AnyTerm {
	return AnyTerm{op(KindDefault, t.Term, fallback)}
}

// Do applies fn to the receiver, capturing the closure as a sub-term.
func (t AnyTerm) Do(fn func(AnyTerm) interface{}) AnyTerm {
	f := funcOf(1, func(args []AnyTerm) interface{} { return fn(args[0]) })
	return AnyTerm{newTerm(KindFuncCall, []Term{f, t.Term}, nil)}
}

// Typed views over an untyped proxy. The discriminant is checked at the
// point an operator's result is evaluated, not here: building a view of the
// wrong type fails at execution with a type mismatch.

func (t AnyTerm) AsBool() BoolTerm     { return BoolTerm{t.Term} }
func (t AnyTerm) AsNumber() NumberTerm { return NumberTerm{t.Term} }
func (t AnyTerm) AsString() StringTerm { return StringTerm{t.Term} }
func (t AnyTerm) AsTime() TimeTerm     { return TimeTerm{t.Term} }
func (t AnyTerm) AsArray() ArrayTerm   { return ArrayTerm{t.Term} }
func (t AnyTerm) AsObject() ObjectTerm { return ObjectTerm{t.Term} }

// --- boolean operators ---

func (t BoolTerm) And(v interface{}) BoolTerm { return BoolTerm{op(KindAnd, t.Term, v)} }
func (t BoolTerm) Or(v interface{}) BoolTerm  { return BoolTerm{op(KindOr, t.Term, v)} }
func (t BoolTerm) Not() BoolTerm              { return BoolTerm{op(KindNot, t.Term)} }
func (t BoolTerm) Eq(v interface{}) BoolTerm  { return BoolTerm{op(KindEq, t.Term, v)} }
func (t BoolTerm) Ne(v interface{}) BoolTerm  { return BoolTerm{op(KindNe, t.Term, v)} }
func (t BoolTerm) Default(fallback interface{}) BoolTerm {
	return BoolTerm{op(KindDefault, t.Term, fallback)}
}

// --- number operators ---

func (t NumberTerm) Add(v interface{}) NumberTerm { return NumberTerm{op(KindAdd, t.Term, v)} }
func (t NumberTerm) Sub(v interface{}) NumberTerm { return NumberTerm{op(KindSub, t.Term, v)} }
func (t NumberTerm) Mul(v interface{}) NumberTerm { return NumberTerm{op(KindMul, t.Term, v)} }
func (t NumberTerm) Div(v interface{}) NumberTerm { return NumberTerm{op(KindDiv, t.Term, v)} }
func (t NumberTerm) Mod(v interface{}) NumberTerm { return NumberTerm{op(KindMod, t.Term, v)} }
func (t NumberTerm) Eq(v interface{}) BoolTerm    { return BoolTerm{op(KindEq, t.Term, v)} }
func (t NumberTerm) Ne(v interface{}) BoolTerm    { return BoolTerm{op(KindNe, t.Term, v)} }
func (t NumberTerm) Gt(v interface{}) BoolTerm    { return BoolTerm{op(KindGt, t.Term, v)} }
func (t NumberTerm) Ge(v interface{}) BoolTerm    { return BoolTerm{op(KindGe, t.Term, v)} }
func (t NumberTerm) Lt(v interface{}) BoolTerm    { return BoolTerm{op(KindLt, t.Term, v)} }
func (t NumberTerm) Le(v interface{}) BoolTerm    { return BoolTerm{op(KindLe, t.Term, v)} }
func (t NumberTerm) Default(fallback interface{}) NumberTerm {
	return NumberTerm{op(KindDefault, t.Term, fallback)}
}

// --- string operators ---

// Add concatenates; the overload of ADD is resolved by the receiver's
// static type tag, not by a runtime check.
func (t StringTerm) Add(v interface{}) StringTerm { return StringTerm{op(KindAdd, t.Term, v)} }

// Match tests the string against an RE2 regular expression, yielding the
// match object or null.
func (t StringTerm) Match(pattern string) ObjectTerm {
	return ObjectTerm{op(KindMatch, t.Term, pattern)}
}

func (t StringTerm) Split(sep string) ArrayTerm { return ArrayTerm{op(KindSplit, t.Term, sep)} }
func (t StringTerm) Upcase() StringTerm         { return StringTerm{op(KindUpcase, t.Term)} }
func (t StringTerm) Downcase() StringTerm       { return StringTerm{op(KindDowncase, t.Term)} }
func (t StringTerm) Count() NumberTerm          { return NumberTerm{op(KindCount, t.Term)} }
func (t StringTerm) Eq(v interface{}) BoolTerm  { return BoolTerm{op(KindEq, t.Term, v)} }
func (t StringTerm) Ne(v interface{}) BoolTerm  { return BoolTerm{op(KindNe, t.Term, v)} }
func (t StringTerm) Gt(v interface{}) BoolTerm  { return BoolTerm{op(KindGt, t.Term, v)} }
func (t StringTerm) Ge(v interface{}) BoolTerm  { return BoolTerm{op(KindGe, t.Term, v)} }
func (t StringTerm) Lt(v interface{}) BoolTerm  { return BoolTerm{op(KindLt, t.Term, v)} }
func (t StringTerm) Le(v interface{}) BoolTerm  { return BoolTerm{op(KindLe, t.Term, v)} }
func (t StringTerm) Default(fallback interface{}) StringTerm {
	return StringTerm{op(KindDefault, t.Term, fallback)}
}

// --- time operators ---

func (t TimeTerm) Year() NumberTerm    { return NumberTerm{op(KindYear, t.Term)} }
func (t TimeTerm) Month() NumberTerm   { return NumberTerm{op(KindMonth, t.Term)} }
func (t TimeTerm) Day() NumberTerm     { return NumberTerm{op(KindDay, t.Term)} }
func (t TimeTerm) Hours() NumberTerm   { return NumberTerm{op(KindHours, t.Term)} }
func (t TimeTerm) Minutes() NumberTerm { return NumberTerm{op(KindMinutes, t.Term)} }
func (t TimeTerm) Seconds() NumberTerm { return NumberTerm{op(KindSeconds, t.Term)} }
func (t TimeTerm) Date() TimeTerm      { return TimeTerm{op(KindDate, t.Term)} }

// During tests start <= t < end.
func (t TimeTerm) During(start, end interface{}) BoolTerm {
	return BoolTerm{op(KindDuring, t.Term, start, end)}
}

func (t TimeTerm) InTimezone(tz string) TimeTerm {
	return TimeTerm{op(KindInTimezone, t.Term, tz)}
}

func (t TimeTerm) ToEpochTime() NumberTerm  { return NumberTerm{op(KindToEpochTime, t.Term)} }
func (t TimeTerm) Eq(v interface{}) BoolTerm { return BoolTerm{op(KindEq, t.Term, v)} }
func (t TimeTerm) Ne(v interface{}) BoolTerm { return BoolTerm{op(KindNe, t.Term, v)} }
func (t TimeTerm) Gt(v interface{}) BoolTerm { return BoolTerm{op(KindGt, t.Term, v)} }
func (t TimeTerm) Ge(v interface{}) BoolTerm { return BoolTerm{op(KindGe, t.Term, v)} }
func (t TimeTerm) Lt(v interface{}) BoolTerm { return BoolTerm{op(KindLt, t.Term, v)} }
func (t TimeTerm) Le(v interface{}) BoolTerm { return BoolTerm{op(KindLe, t.Term, v)} }
func (t TimeTerm) Default(fallback interface{}) TimeTerm {
	return TimeTerm{op(KindDefault, t.Term, fallback)}
}

// --- array operators ---

func (t ArrayTerm) Append(v interface{}) ArrayTerm  { return ArrayTerm{op(KindAppend, t.Term, v)} }
func (t ArrayTerm) Prepend(v interface{}) ArrayTerm { return ArrayTerm{op(KindPrepend, t.Term, v)} }

// Add concatenates two arrays, preserving the element type.
func (t ArrayTerm) Add(v interface{}) ArrayTerm { return ArrayTerm{op(KindAdd, t.Term, v)} }

// Slice selects the half-open range [start, end).
func (t ArrayTerm) Slice(start, end int) ArrayTerm {
	return ArrayTerm{op(KindSlice, t.Term, start, end)}
}

func (t ArrayTerm) Nth(i int) AnyTerm               { return AnyTerm{op(KindNth, t.Term, i)} }
func (t ArrayTerm) Includes(v interface{}) BoolTerm { return BoolTerm{op(KindContains, t.Term, v)} }
func (t ArrayTerm) IsEmpty() BoolTerm               { return BoolTerm{op(KindIsEmpty, t.Term)} }
func (t ArrayTerm) Count() NumberTerm               { return NumberTerm{op(KindCount, t.Term)} }
func (t ArrayTerm) Distinct() ArrayTerm             { return ArrayTerm{op(KindDistinct, t.Term)} }
func (t ArrayTerm) Eq(v interface{}) BoolTerm       { return BoolTerm{op(KindEq, t.Term, v)} }
func (t ArrayTerm) Ne(v interface{}) BoolTerm       { return BoolTerm{op(KindNe, t.Term, v)} }
func (t ArrayTerm) Default(fallback interface{}) ArrayTerm {
	return ArrayTerm{op(KindDefault, t.Term, fallback)}
}

// --- object operators ---

func (t ObjectTerm) Field(key interface{}) AnyTerm { return AnyTerm{bracket(t.Term, key)} }
func (t ObjectTerm) Keys() ArrayTerm               { return ArrayTerm{op(KindKeys, t.Term)} }
func (t ObjectTerm) Values() ArrayTerm             { return ArrayTerm{op(KindValues, t.Term)} }
func (t ObjectTerm) Merge(v interface{}) ObjectTerm {
	return ObjectTerm{op(KindMerge, t.Term, v)}
}

func (t ObjectTerm) HasFields(selectors ...interface{}) BoolTerm {
	return BoolTerm{selectorOp(KindHasFields, t.Term, selectors)}
}

func (t ObjectTerm) Pluck(selectors ...interface{}) ObjectTerm {
	return ObjectTerm{selectorOp(KindPluck, t.Term, selectors)}
}

func (t ObjectTerm) Without(selectors ...interface{}) ObjectTerm {
	return ObjectTerm{selectorOp(KindWithout, t.Term, selectors)}
}

func (t ObjectTerm) Eq(v interface{}) BoolTerm { return BoolTerm{op(KindEq, t.Term, v)} }
func (t ObjectTerm) Ne(v interface{}) BoolTerm { return BoolTerm{op(KindNe, t.Term, v)} }
func (t ObjectTerm) Default(fallback interface{}) ObjectTerm {
	return ObjectTerm{op(KindDefault, t.Term, fallback)}
}

// bracket validates the field-access key and builds a BRACKET term.
// Accepted keys: string field name, integer position, or a sub-proxy whose
// value resolves at execution.
func bracket(recv Term, key interface{}) Term {
	switch key.(type) {
	case string, int, int64, float64, Term, AnyTerm, StringTerm, NumberTerm:
		return op(KindBracket, recv, key)
	default:
		return validationErr("field access", "key must be a string, number or proxy, got %T", key)
	}
}

// funcOf captures a Go closure as a FUNC term with freshly numbered
// parameter variables.
func funcOf(arity int, body func(args []AnyTerm) interface{}) Term {
	ids := make([]Term, arity)
	params := make([]AnyTerm, arity)
	for i := range ids {
		id := float64(nextVarID.Add(1))
		ids[i] = datum(id)
		params[i] = AnyTerm{newTerm(KindVar, []Term{datum(id)}, nil)}
	}
	b := expr(body(params))
	return newTerm(KindFunc, []Term{newTerm(KindMakeArray, ids, nil), b}, nil)
}

var nextVarID atomic.Int64
