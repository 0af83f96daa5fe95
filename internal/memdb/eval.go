package memdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"reqlcore/reql"
)

// dbVal is a resolved database reference; db is nil when the name does not
// exist yet (DDL creates it).
type dbVal struct {
	name string
	db   *database
}

// evaluator resolves one term tree against the store. The store lock is
// held by the caller for the whole evaluation.
type evaluator struct {
	store *Store
	ctx   context.Context
	vars  map[float64]interface{}
}

func (e *evaluator) eval(t reql.Term) (interface{}, error) {
	if err := t.Err(); err != nil {
		return nil, err
	}
	switch t.Kind() {
	case 0:
		return normalize(t.Datum()), nil

	case reql.KindMakeArray:
		out := make([]interface{}, len(t.Args()))
		for i, a := range t.Args() {
			v, err := e.eval(a)
			if err != nil {
				return nil, err
			}
			out[i] = plain(v)
		}
		return out, nil

	case reql.KindMakeObj:
		out := make(map[string]interface{}, len(t.Opts()))
		for k, v := range t.Opts() {
			ot, ok := v.(reql.Term)
			if !ok {
				out[k] = normalize(v)
				continue
			}
			ev, err := e.eval(ot)
			if err != nil {
				return nil, err
			}
			out[k] = plain(ev)
		}
		return out, nil

	case reql.KindVar:
		id, err := e.number(t.Args()[0], "var")
		if err != nil {
			return nil, err
		}
		v, ok := e.vars[id]
		if !ok {
			return nil, fmt.Errorf("memdb: unbound variable %v", id)
		}
		return v, nil

	case reql.KindFunc:
		params := t.Args()[0].Args()
		ids := make([]float64, len(params))
		for i, p := range params {
			n, ok := normalize(p.Datum()).(float64)
			if !ok {
				return nil, fmt.Errorf("memdb: malformed function parameter")
			}
			ids[i] = n
		}
		return &funcVal{params: ids, body: t.Args()[1]}, nil

	case reql.KindFuncCall:
		fn, err := e.eval(t.Args()[0])
		if err != nil {
			return nil, err
		}
		args := make([]interface{}, len(t.Args())-1)
		for i, a := range t.Args()[1:] {
			v, err := e.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return e.apply(fn, args)

	case reql.KindDB:
		name, err := e.str(t.Args()[0], "db")
		if err != nil {
			return nil, err
		}
		return &dbVal{name: name, db: e.store.dbs[name]}, nil

	case reql.KindTable:
		dv, err := e.dbArg(t.Args()[0], "table")
		if err != nil {
			return nil, err
		}
		name, err := e.str(t.Args()[1], "table")
		if err != nil {
			return nil, err
		}
		if dv.db == nil {
			return nil, fmt.Errorf("memdb: database %q does not exist", dv.name)
		}
		tbl, ok := dv.db.tables[name]
		if !ok {
			return nil, fmt.Errorf("memdb: table %q does not exist in %q", name, dv.name)
		}
		return &tableVal{db: dv.db, tbl: tbl, name: name}, nil

	case reql.KindBracket, reql.KindGetField:
		return e.evalBracket(t)

	case reql.KindDefault:
		v, err := e.eval(t.Args()[0])
		if err != nil && !errors.Is(err, errMissingField) {
			return nil, err
		}
		if err == nil && plain(v) != nil {
			return plain(v), nil
		}
		fb, err := e.eval(t.Args()[1])
		if err != nil {
			return nil, err
		}
		return plain(fb), nil

	case reql.KindEq, reql.KindNe, reql.KindLt, reql.KindLe, reql.KindGt, reql.KindGe:
		return e.evalCompare(t)

	case reql.KindNot:
		v, err := e.eval(t.Args()[0])
		if err != nil {
			return nil, err
		}
		return !truthy(plain(v)), nil

	case reql.KindAnd, reql.KindOr:
		return e.evalLogic(t)

	case reql.KindAdd, reql.KindSub, reql.KindMul, reql.KindDiv, reql.KindMod:
		return e.evalArith(t)

	case reql.KindMatch, reql.KindSplit, reql.KindUpcase, reql.KindDowncase:
		return e.evalString(t)

	case reql.KindISO8601, reql.KindEpochTime, reql.KindNow, reql.KindInTimezone,
		reql.KindDuring, reql.KindDate, reql.KindToEpochTime,
		reql.KindYear, reql.KindMonth, reql.KindDay,
		reql.KindHours, reql.KindMinutes, reql.KindSeconds:
		return e.evalTime(t)

	case reql.KindKeys, reql.KindValues, reql.KindMerge:
		return e.evalObject(t)

	case reql.KindPluck, reql.KindWithout, reql.KindHasFields:
		return e.evalSelector(t)

	case reql.KindGet, reql.KindGetAll, reql.KindBetween,
		reql.KindFilter, reql.KindMap, reql.KindOrderBy,
		reql.KindSlice, reql.KindSkip, reql.KindLimit, reql.KindNth,
		reql.KindAppend, reql.KindPrepend, reql.KindContains,
		reql.KindIsEmpty, reql.KindDistinct, reql.KindCount,
		reql.KindUnion, reql.KindEqJoin, reql.KindZip,
		reql.KindGroup, reql.KindUngroup,
		reql.KindSum, reql.KindAvg, reql.KindMin, reql.KindMax:
		return e.evalSeq(t)

	case reql.KindInsert, reql.KindUpdate, reql.KindReplace, reql.KindDelete:
		return e.evalWrite(t)

	case reql.KindDBCreate, reql.KindDBDrop, reql.KindDBList,
		reql.KindTableCreate, reql.KindTableDrop, reql.KindTableList,
		reql.KindIndexCreate, reql.KindIndexDrop, reql.KindIndexList, reql.KindIndexWait:
		return e.evalDDL(t)

	default:
		return nil, fmt.Errorf("memdb: cannot evaluate %s", t.Kind())
	}
}

// apply invokes a captured function value.
func (e *evaluator) apply(fn interface{}, args []interface{}) (interface{}, error) {
	f, ok := fn.(*funcVal)
	if !ok {
		return nil, typeErr("function call", "function", fn)
	}
	if len(args) != len(f.params) {
		return nil, fmt.Errorf("memdb: function expects %d arguments, got %d", len(f.params), len(args))
	}
	type binding struct {
		val   interface{}
		bound bool
	}
	saved := make(map[float64]binding, len(f.params))
	for i, id := range f.params {
		v, ok := e.vars[id]
		saved[id] = binding{val: v, bound: ok}
		e.vars[id] = plain(args[i])
	}
	defer func() {
		for id, b := range saved {
			if b.bound {
				e.vars[id] = b.val
			} else {
				delete(e.vars, id)
			}
		}
	}()
	v, err := e.eval(f.body)
	if err != nil {
		return nil, err
	}
	return plain(v), nil
}

func (e *evaluator) evalBracket(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	key, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	switch k := plain(key).(type) {
	case string:
		return fieldOf(plain(recv), k)
	case float64:
		items, err := seqOf("nth", recv)
		if err != nil {
			return nil, err
		}
		return nthOf(items, int(k))
	default:
		return nil, typeErr("field access", "string or number", key)
	}
}

func fieldOf(v interface{}, name string) (interface{}, error) {
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, typeErr("field access", "object", v)
	}
	fv, ok := doc[name]
	if !ok {
		return nil, missingField(name)
	}
	return fv, nil
}

func nthOf(items []interface{}, n int) (interface{}, error) {
	if n < 0 {
		n += len(items)
	}
	if n < 0 || n >= len(items) {
		return nil, fmt.Errorf("memdb: index %d out of bounds for sequence of length %d", n, len(items))
	}
	return items[n], nil
}

func (e *evaluator) evalCompare(t reql.Term) (interface{}, error) {
	a, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	b, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	c := compareVals(plain(a), plain(b))
	switch t.Kind() {
	case reql.KindEq:
		return c == 0, nil
	case reql.KindNe:
		return c != 0, nil
	case reql.KindLt:
		return c < 0, nil
	case reql.KindLe:
		return c <= 0, nil
	case reql.KindGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func (e *evaluator) evalLogic(t reql.Term) (interface{}, error) {
	a, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	// short-circuit, like the source language operators these capture
	if t.Kind() == reql.KindAnd && !truthy(plain(a)) {
		return plain(a), nil
	}
	if t.Kind() == reql.KindOr && truthy(plain(a)) {
		return plain(a), nil
	}
	b, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	return plain(b), nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

func (e *evaluator) evalArith(t reql.Term) (interface{}, error) {
	a, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	b, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	av, bv := plain(a), plain(b)
	if t.Kind() == reql.KindAdd {
		// ADD is overloaded by operand type: sum, concatenation, or
		// array concatenation
		switch x := av.(type) {
		case float64:
			y, ok := bv.(float64)
			if !ok {
				return nil, typeErr("add", "number", bv)
			}
			return x + y, nil
		case string:
			y, ok := bv.(string)
			if !ok {
				return nil, typeErr("add", "string", bv)
			}
			return x + y, nil
		case []interface{}:
			y, ok := bv.([]interface{})
			if !ok {
				return nil, typeErr("add", "array", bv)
			}
			out := make([]interface{}, 0, len(x)+len(y))
			out = append(out, x...)
			return append(out, y...), nil
		default:
			return nil, typeErr("add", "number, string or array", av)
		}
	}
	x, ok := av.(float64)
	if !ok {
		return nil, typeErr(t.Kind().String(), "number", av)
	}
	y, ok := bv.(float64)
	if !ok {
		return nil, typeErr(t.Kind().String(), "number", bv)
	}
	switch t.Kind() {
	case reql.KindSub:
		return x - y, nil
	case reql.KindMul:
		return x * y, nil
	case reql.KindDiv:
		if y == 0 {
			return nil, fmt.Errorf("memdb: division by zero")
		}
		return x / y, nil
	default:
		if y == 0 {
			return nil, fmt.Errorf("memdb: division by zero")
		}
		return math.Mod(x, y), nil
	}
}

func (e *evaluator) evalString(t reql.Term) (interface{}, error) {
	s, err := e.str(t.Args()[0], t.Kind().String())
	if err != nil {
		return nil, err
	}
	switch t.Kind() {
	case reql.KindUpcase:
		return strings.ToUpper(s), nil
	case reql.KindDowncase:
		return strings.ToLower(s), nil
	case reql.KindSplit:
		sep, err := e.str(t.Args()[1], "split")
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	default: // match
		pattern, err := e.str(t.Args()[1], "match")
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("memdb: match: %w", err)
		}
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			return nil, nil
		}
		groups := make([]interface{}, 0, len(loc)/2-1)
		for i := 2; i < len(loc); i += 2 {
			if loc[i] < 0 {
				groups = append(groups, nil)
				continue
			}
			groups = append(groups, map[string]interface{}{
				"str":   s[loc[i]:loc[i+1]],
				"start": float64(loc[i]),
				"end":   float64(loc[i+1]),
			})
		}
		return map[string]interface{}{
			"str":    s[loc[0]:loc[1]],
			"start":  float64(loc[0]),
			"end":    float64(loc[1]),
			"groups": groups,
		}, nil
	}
}

func (e *evaluator) evalTime(t reql.Term) (interface{}, error) {
	switch t.Kind() {
	case reql.KindNow:
		return time.Now().UTC(), nil
	case reql.KindISO8601:
		s, err := e.str(t.Args()[0], "iso8601")
		if err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("memdb: iso8601: %w", err)
		}
		return parsed, nil
	case reql.KindEpochTime:
		sec, err := e.number(t.Args()[0], "epoch_time")
		if err != nil {
			return nil, err
		}
		return time.Unix(int64(sec), int64((sec-math.Trunc(sec))*1e9)).UTC(), nil
	}

	recv, err := e.timeVal(t.Args()[0], t.Kind().String())
	if err != nil {
		return nil, err
	}
	switch t.Kind() {
	case reql.KindInTimezone:
		tz, err := e.str(t.Args()[1], "in_timezone")
		if err != nil {
			return nil, err
		}
		loc, err := tzLocation(tz)
		if err != nil {
			return nil, err
		}
		return recv.In(loc), nil
	case reql.KindDuring:
		start, err := e.timeVal(t.Args()[1], "during")
		if err != nil {
			return nil, err
		}
		end, err := e.timeVal(t.Args()[2], "during")
		if err != nil {
			return nil, err
		}
		return !recv.Before(start) && recv.Before(end), nil
	case reql.KindDate:
		y, m, d := recv.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, recv.Location()), nil
	case reql.KindToEpochTime:
		return timeEpoch(recv), nil
	case reql.KindYear:
		return float64(recv.Year()), nil
	case reql.KindMonth:
		return float64(int(recv.Month())), nil
	case reql.KindDay:
		return float64(recv.Day()), nil
	case reql.KindHours:
		return float64(recv.Hour()), nil
	case reql.KindMinutes:
		return float64(recv.Minute()), nil
	default:
		return float64(recv.Second()), nil
	}
}

func (e *evaluator) evalObject(t reql.Term) (interface{}, error) {
	v, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	doc, ok := plain(v).(map[string]interface{})
	if !ok {
		return nil, typeErr(t.Kind().String(), "object", v)
	}
	switch t.Kind() {
	case reql.KindKeys:
		keys := sortedKeys(doc)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case reql.KindValues:
		keys := sortedKeys(doc)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = doc[k]
		}
		return out, nil
	default: // merge
		patch, err := e.eval(t.Args()[1])
		if err != nil {
			return nil, err
		}
		pm, ok := plain(patch).(map[string]interface{})
		if !ok {
			return nil, typeErr("merge", "object", patch)
		}
		return deepMerge(doc, pm), nil
	}
}

// helpers pulling typed scalars out of argument terms

func (e *evaluator) str(t reql.Term, op string) (string, error) {
	v, err := e.eval(t)
	if err != nil {
		return "", err
	}
	s, ok := plain(v).(string)
	if !ok {
		return "", typeErr(op, "string", v)
	}
	return s, nil
}

func (e *evaluator) number(t reql.Term, op string) (float64, error) {
	v, err := e.eval(t)
	if err != nil {
		return 0, err
	}
	n, ok := plain(v).(float64)
	if !ok {
		return 0, typeErr(op, "number", v)
	}
	return n, nil
}

func (e *evaluator) timeVal(t reql.Term, op string) (time.Time, error) {
	v, err := e.eval(t)
	if err != nil {
		return time.Time{}, err
	}
	tv, ok := plain(v).(time.Time)
	if !ok {
		return time.Time{}, typeErr(op, "time", v)
	}
	return tv, nil
}

func (e *evaluator) dbArg(t reql.Term, op string) (*dbVal, error) {
	v, err := e.eval(t)
	if err != nil {
		return nil, err
	}
	dv, ok := v.(*dbVal)
	if !ok {
		return nil, typeErr(op, "database", v)
	}
	return dv, nil
}

// tzLocation parses a "+HH:MM" style offset.
func tzLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "Z" {
		return time.UTC, nil
	}
	var sign rune
	var h, m int
	if _, err := fmt.Sscanf(tz, "%c%02d:%02d", &sign, &h, &m); err != nil {
		return nil, fmt.Errorf("memdb: bad timezone %q", tz)
	}
	offset := h*3600 + m*60
	switch sign {
	case '-':
		offset = -offset
	case '+':
	default:
		return nil, fmt.Errorf("memdb: bad timezone %q", tz)
	}
	return time.FixedZone(tz, offset), nil
}
