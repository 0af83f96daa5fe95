package memdb

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"reqlcore/reql"
)

// evalSelector handles pluck, without and hasFields over both documents and
// sequences of documents.
func (e *evaluator) evalSelector(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	sels := make([]interface{}, len(t.Args())-1)
	for i, a := range t.Args()[1:] {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		sels[i] = plain(v)
	}

	apply := func(doc map[string]interface{}) (interface{}, error) {
		switch t.Kind() {
		case reql.KindPluck:
			out := make(map[string]interface{})
			for _, sel := range sels {
				if err := pluckInto(out, doc, sel); err != nil {
					return nil, err
				}
			}
			return out, nil
		case reql.KindWithout:
			out := make(map[string]interface{}, len(doc))
			for k, v := range doc {
				out[k] = v
			}
			for _, sel := range sels {
				if err := withoutFrom(out, sel); err != nil {
					return nil, err
				}
			}
			return out, nil
		default:
			for _, sel := range sels {
				ok, err := hasField(doc, sel)
				if err != nil {
					return nil, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		}
	}

	switch val := recv.(type) {
	case *tableVal, *selRows:
		rows, err := rowsOf(val)
		if err != nil {
			return nil, err
		}
		if t.Kind() == reql.KindHasFields {
			// hasFields on a sequence filters, preserving selection identity
			kept := make([]row, 0, len(rows.rows))
			for _, r := range rows.rows {
				ok, err := apply(r.doc)
				if err != nil {
					return nil, err
				}
				if ok.(bool) {
					kept = append(kept, r)
				}
			}
			return &selRows{tbl: rows.tbl, rows: kept}, nil
		}
		out := make([]interface{}, len(rows.rows))
		for i, r := range rows.rows {
			v, err := apply(r.doc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case []interface{}:
		if t.Kind() == reql.KindHasFields {
			kept := make([]interface{}, 0, len(val))
			for _, item := range val {
				doc, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				has, err := apply(doc)
				if err != nil {
					return nil, err
				}
				if has.(bool) {
					kept = append(kept, item)
				}
			}
			return kept, nil
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			doc, ok := item.(map[string]interface{})
			if !ok {
				return nil, typeErr(t.Kind().String(), "object", item)
			}
			v, err := apply(doc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		doc, ok := plain(recv).(map[string]interface{})
		if !ok {
			return nil, typeErr(t.Kind().String(), "object or sequence", recv)
		}
		return apply(doc)
	}
}

func pluckInto(out, doc map[string]interface{}, sel interface{}) error {
	switch s := sel.(type) {
	case string:
		if v, ok := doc[s]; ok {
			out[s] = v
		}
		return nil
	case []interface{}:
		for _, item := range s {
			if err := pluckInto(out, doc, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		for k, sub := range s {
			v, ok := doc[k]
			if !ok {
				continue
			}
			if b, isBool := sub.(bool); isBool && b {
				out[k] = v
				continue
			}
			inner, isDoc := v.(map[string]interface{})
			if !isDoc {
				continue
			}
			nested := make(map[string]interface{})
			if err := pluckInto(nested, inner, sub); err != nil {
				return err
			}
			out[k] = nested
		}
		return nil
	default:
		return typeErr("pluck", "field selector", sel)
	}
}

func withoutFrom(out map[string]interface{}, sel interface{}) error {
	switch s := sel.(type) {
	case string:
		delete(out, s)
		return nil
	case []interface{}:
		for _, item := range s {
			if err := withoutFrom(out, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		for k, sub := range s {
			if b, isBool := sub.(bool); isBool && b {
				delete(out, k)
				continue
			}
			inner, isDoc := out[k].(map[string]interface{})
			if !isDoc {
				continue
			}
			trimmed := make(map[string]interface{}, len(inner))
			for ik, iv := range inner {
				trimmed[ik] = iv
			}
			if err := withoutFrom(trimmed, sub); err != nil {
				return err
			}
			out[k] = trimmed
		}
		return nil
	default:
		return typeErr("without", "field selector", sel)
	}
}

func hasField(doc map[string]interface{}, sel interface{}) (bool, error) {
	switch s := sel.(type) {
	case string:
		v, ok := doc[s]
		return ok && v != nil, nil
	case []interface{}:
		for _, item := range s {
			ok, err := hasField(doc, item)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case map[string]interface{}:
		for k, sub := range s {
			if b, isBool := sub.(bool); isBool && b {
				v, ok := doc[k]
				if !ok || v == nil {
					return false, nil
				}
				continue
			}
			inner, ok := doc[k].(map[string]interface{})
			if !ok {
				return false, nil
			}
			has, err := hasField(inner, sub)
			if err != nil || !has {
				return false, err
			}
		}
		return true, nil
	default:
		return false, typeErr("has_fields", "field selector", sel)
	}
}

// evalSeq handles selection reads and sequence transforms.
func (e *evaluator) evalSeq(t reql.Term) (interface{}, error) {
	switch t.Kind() {
	case reql.KindGet:
		return e.evalGet(t)
	case reql.KindGetAll:
		return e.evalGetAll(t)
	case reql.KindBetween:
		return e.evalBetween(t)
	case reql.KindFilter:
		return e.evalFilter(t)
	case reql.KindMap:
		return e.evalMap(t)
	case reql.KindOrderBy:
		return e.evalOrderBy(t)
	case reql.KindSlice, reql.KindSkip, reql.KindLimit:
		return e.evalRange(t)
	case reql.KindNth:
		return e.evalNth(t)
	case reql.KindAppend, reql.KindPrepend:
		return e.evalArrayEdit(t)
	case reql.KindContains:
		return e.evalContains(t)
	case reql.KindIsEmpty:
		items, err := e.seqArg(t, "is_empty")
		if err != nil {
			return nil, err
		}
		return len(items) == 0, nil
	case reql.KindDistinct:
		return e.evalDistinct(t)
	case reql.KindCount:
		return e.evalCount(t)
	case reql.KindUnion:
		return e.evalUnion(t)
	case reql.KindEqJoin:
		return e.evalEqJoin(t)
	case reql.KindZip:
		return e.evalZip(t)
	case reql.KindGroup:
		return e.evalGroup(t)
	case reql.KindUngroup:
		v, err := e.eval(t.Args()[0])
		if err != nil {
			return nil, err
		}
		g, ok := v.(*grouped)
		if !ok {
			return nil, typeErr("ungroup", "grouped data", v)
		}
		return plain(g), nil
	default:
		return e.evalAggregate(t)
	}
}

func (e *evaluator) seqArg(t reql.Term, op string) ([]interface{}, error) {
	v, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	return seqOf(op, v)
}

func (e *evaluator) tableArg(t reql.Term, op string) (*tableVal, error) {
	v, err := e.eval(t)
	if err != nil {
		return nil, err
	}
	tv, ok := v.(*tableVal)
	if !ok {
		return nil, typeErr(op, "table", v)
	}
	return tv, nil
}

func (e *evaluator) evalGet(t reql.Term) (interface{}, error) {
	tv, err := e.tableArg(t.Args()[0], "get")
	if err != nil {
		return nil, err
	}
	key, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	ks := keyString(plain(key))
	doc, ok := tv.tbl.docs[ks]
	return &selRow{tbl: tv.tbl, key: ks, doc: doc, exists: ok}, nil
}

// readyIndex resolves a named index, failing when it is missing or not yet
// waited on.
func readyIndex(tbl *table, name string) (*index, error) {
	idx, ok := tbl.indexes[name]
	if !ok {
		return nil, fmt.Errorf("memdb: index %q does not exist", name)
	}
	if !idx.ready {
		return nil, fmt.Errorf("memdb: index %q is not ready", name)
	}
	return idx, nil
}

// indexValue computes a document's value under an index. A missing simple
// field yields ok=false, excluding the document from the index.
func (e *evaluator) indexValue(idx *index, doc map[string]interface{}) (interface{}, bool, error) {
	if idx.fn.Kind() == reql.KindFunc {
		fn, err := e.eval(idx.fn)
		if err != nil {
			return nil, false, err
		}
		v, err := e.apply(fn, []interface{}{doc})
		if err != nil {
			if errors.Is(err, errMissingField) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return v, true, nil
	}
	v, ok := doc[idx.field]
	return v, ok, nil
}

func (e *evaluator) evalGetAll(t reql.Term) (interface{}, error) {
	tv, err := e.tableArg(t.Args()[0], "get_all")
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, len(t.Args())-1)
	for i, a := range t.Args()[1:] {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		keys[i] = plain(v)
	}

	if name, ok := t.OptArg("index"); ok {
		idx, err := readyIndex(tv.tbl, name.(string))
		if err != nil {
			return nil, err
		}
		rows := make([]row, 0)
		for _, ks := range tv.tbl.order {
			doc := tv.tbl.docs[ks]
			iv, present, err := e.indexValue(idx, doc)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			for _, k := range keys {
				if equalVals(iv, k) {
					rows = append(rows, row{key: ks, doc: doc})
					break
				}
			}
		}
		return &selRows{tbl: tv.tbl, rows: rows}, nil
	}

	rows := make([]row, 0, len(keys))
	for _, k := range keys {
		ks := keyString(k)
		if doc, ok := tv.tbl.docs[ks]; ok {
			rows = append(rows, row{key: ks, doc: doc})
		}
	}
	return &selRows{tbl: tv.tbl, rows: rows}, nil
}

func (e *evaluator) evalBetween(t reql.Term) (interface{}, error) {
	tv, err := e.tableArg(t.Args()[0], "between")
	if err != nil {
		return nil, err
	}
	low, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	high, err := e.eval(t.Args()[2])
	if err != nil {
		return nil, err
	}
	lo, hi := plain(low), plain(high)

	var idx *index
	if name, ok := t.OptArg("index"); ok {
		idx, err = readyIndex(tv.tbl, name.(string))
		if err != nil {
			return nil, err
		}
	}
	rows := make([]row, 0)
	for _, ks := range tv.tbl.order {
		doc := tv.tbl.docs[ks]
		var v interface{}
		var present bool
		if idx != nil {
			v, present, err = e.indexValue(idx, doc)
			if err != nil {
				return nil, err
			}
		} else {
			v, present = doc[tv.tbl.pkey]
		}
		if !present {
			continue
		}
		// half-open range: low inclusive, high exclusive
		if compareVals(v, lo) >= 0 && compareVals(v, hi) < 0 {
			rows = append(rows, row{key: ks, doc: doc})
		}
	}
	return &selRows{tbl: tv.tbl, rows: rows}, nil
}

// predicate wraps the two filter forms behind one test.
func (e *evaluator) predicate(t reql.Term) (func(doc interface{}) (bool, error), error) {
	pv, err := e.eval(t)
	if err != nil {
		return nil, err
	}
	switch p := pv.(type) {
	case *funcVal:
		return func(doc interface{}) (bool, error) {
			v, err := e.apply(p, []interface{}{doc})
			if err != nil {
				if errors.Is(err, errMissingField) {
					// absent fields exclude the document rather than fail
					return false, nil
				}
				return false, err
			}
			return truthy(v), nil
		}, nil
	case map[string]interface{}:
		return func(doc interface{}) (bool, error) {
			d, ok := doc.(map[string]interface{})
			if !ok {
				return false, nil
			}
			return matchesPattern(d, p), nil
		}, nil
	default:
		return nil, typeErr("filter", "pattern or function", pv)
	}
}

func (e *evaluator) evalFilter(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	pred, err := e.predicate(t.Args()[1])
	if err != nil {
		return nil, err
	}
	switch val := recv.(type) {
	case *tableVal, *selRows:
		rows, err := rowsOf(val)
		if err != nil {
			return nil, err
		}
		kept := make([]row, 0, len(rows.rows))
		for _, r := range rows.rows {
			ok, err := pred(r.doc)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, r)
			}
		}
		return &selRows{tbl: rows.tbl, rows: kept}, nil
	default:
		items, err := seqOf("filter", recv)
		if err != nil {
			return nil, err
		}
		kept := make([]interface{}, 0, len(items))
		for _, item := range items {
			ok, err := pred(item)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, item)
			}
		}
		return kept, nil
	}
}

func (e *evaluator) evalMap(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, "map")
	if err != nil {
		return nil, err
	}
	fn, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		switch f := fn.(type) {
		case *funcVal:
			v, err := e.apply(f, []interface{}{item})
			if err != nil {
				return nil, err
			}
			out[i] = v
		default:
			out[i] = plain(fn)
		}
	}
	return out, nil
}

// sortKey is one orderBy comparator component.
type sortKey struct {
	desc    bool
	extract func(v interface{}) (interface{}, error)
}

func (e *evaluator) sortKeyOf(t reql.Term) (sortKey, error) {
	var key sortKey
	for t.Kind() == reql.KindAsc || t.Kind() == reql.KindDesc {
		if t.Kind() == reql.KindDesc {
			key.desc = true
		}
		t = t.Args()[0]
	}
	if t.Kind() == reql.KindFunc {
		fn, err := e.eval(t)
		if err != nil {
			return sortKey{}, err
		}
		fv := fn.(*funcVal)
		key.extract = func(v interface{}) (interface{}, error) { return e.apply(fv, []interface{}{v}) }
		return key, nil
	}
	v, err := e.eval(t)
	if err != nil {
		return sortKey{}, err
	}
	field, ok := plain(v).(string)
	if !ok {
		return sortKey{}, typeErr("order_by", "field name or key function", v)
	}
	key.extract = func(v interface{}) (interface{}, error) { return fieldOf(plain(v), field) }
	return key, nil
}

func (e *evaluator) evalOrderBy(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	keys := make([]sortKey, 0, len(t.Args())-1)
	if name, ok := t.OptArg("index"); ok {
		field, isStr := name.(string)
		if !isStr {
			return nil, typeErr("order_by", "index name", name)
		}
		tv, isTable := recv.(*tableVal)
		if !isTable {
			return nil, fmt.Errorf("memdb: order_by with an index requires a table")
		}
		if field != tv.tbl.pkey {
			idx, err := readyIndex(tv.tbl, field)
			if err != nil {
				return nil, err
			}
			keys = append(keys, sortKey{extract: func(v interface{}) (interface{}, error) {
				doc, _ := plain(v).(map[string]interface{})
				iv, present, err := e.indexValue(idx, doc)
				if err != nil {
					return nil, err
				}
				if !present {
					return nil, nil
				}
				return iv, nil
			}})
		} else {
			keys = append(keys, sortKey{extract: func(v interface{}) (interface{}, error) {
				return fieldOf(plain(v), field)
			}})
		}
	}
	for _, a := range t.Args()[1:] {
		k, err := e.sortKeyOf(a)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	// missing sort fields order as null rather than failing the query
	keyOf := func(k sortKey, v interface{}) (interface{}, error) {
		kv, err := k.extract(v)
		if errors.Is(err, errMissingField) {
			return nil, nil
		}
		return kv, err
	}
	less := func(a, b interface{}) (bool, error) {
		for _, k := range keys {
			av, err := keyOf(k, a)
			if err != nil {
				return false, err
			}
			bv, err := keyOf(k, b)
			if err != nil {
				return false, err
			}
			c := compareVals(plain(av), plain(bv))
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0, nil
			}
			return c < 0, nil
		}
		return false, nil
	}

	switch val := recv.(type) {
	case *tableVal, *selRows:
		rows, err := rowsOf(val)
		if err != nil {
			return nil, err
		}
		sorted := make([]row, len(rows.rows))
		copy(sorted, rows.rows)
		var sortErr error
		sort.SliceStable(sorted, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			l, err := less(sorted[i].doc, sorted[j].doc)
			if err != nil {
				sortErr = err
			}
			return l
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return &selRows{tbl: rows.tbl, rows: sorted}, nil
	default:
		items, err := seqOf("order_by", recv)
		if err != nil {
			return nil, err
		}
		sorted := make([]interface{}, len(items))
		copy(sorted, items)
		var sortErr error
		sort.SliceStable(sorted, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			l, err := less(sorted[i], sorted[j])
			if err != nil {
				sortErr = err
			}
			return l
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return sorted, nil
	}
}

func (e *evaluator) evalRange(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	n1, err := e.number(t.Args()[1], t.Kind().String())
	if err != nil {
		return nil, err
	}
	bounds := func(length int) (int, int) {
		switch t.Kind() {
		case reql.KindSlice:
			// evaluated below once n2 is known
			return 0, length
		case reql.KindSkip:
			return clamp(int(n1), length), length
		default: // limit
			return 0, clamp(int(n1), length)
		}
	}
	var start, end int
	switch val := recv.(type) {
	case *tableVal, *selRows:
		rows, err := rowsOf(val)
		if err != nil {
			return nil, err
		}
		start, end = bounds(len(rows.rows))
		if t.Kind() == reql.KindSlice {
			n2, err := e.number(t.Args()[2], "slice")
			if err != nil {
				return nil, err
			}
			start, end = sliceBounds(int(n1), int(n2), len(rows.rows))
		}
		return &selRows{tbl: rows.tbl, rows: rows.rows[start:end]}, nil
	default:
		items, err := seqOf(t.Kind().String(), recv)
		if err != nil {
			return nil, err
		}
		start, end = bounds(len(items))
		if t.Kind() == reql.KindSlice {
			n2, err := e.number(t.Args()[2], "slice")
			if err != nil {
				return nil, err
			}
			start, end = sliceBounds(int(n1), int(n2), len(items))
		}
		return items[start:end], nil
	}
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func sliceBounds(start, end, length int) (int, int) {
	s, e := clamp(start, length), clamp(end, length)
	if e < s {
		e = s
	}
	return s, e
}

func (e *evaluator) evalNth(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	n, err := e.number(t.Args()[1], "nth")
	if err != nil {
		return nil, err
	}
	switch val := recv.(type) {
	case *tableVal, *selRows:
		rows, err := rowsOf(val)
		if err != nil {
			return nil, err
		}
		i := int(n)
		if i < 0 {
			i += len(rows.rows)
		}
		if i < 0 || i >= len(rows.rows) {
			return nil, fmt.Errorf("memdb: index %d out of bounds for sequence of length %d", int(n), len(rows.rows))
		}
		r := rows.rows[i]
		return &selRow{tbl: rows.tbl, key: r.key, doc: r.doc, exists: true}, nil
	default:
		items, err := seqOf("nth", recv)
		if err != nil {
			return nil, err
		}
		return nthOf(items, int(n))
	}
}

func (e *evaluator) evalArrayEdit(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, t.Kind().String())
	if err != nil {
		return nil, err
	}
	v, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	el := plain(v)
	out := make([]interface{}, 0, len(items)+1)
	if t.Kind() == reql.KindPrepend {
		out = append(out, el)
	}
	out = append(out, items...)
	if t.Kind() == reql.KindAppend {
		out = append(out, el)
	}
	return out, nil
}

func (e *evaluator) evalContains(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, "contains")
	if err != nil {
		return nil, err
	}
	v, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	want := plain(v)
	for _, item := range items {
		if equalVals(plain(item), want) {
			return true, nil
		}
	}
	return false, nil
}

func (e *evaluator) evalDistinct(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, "distinct")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		k := keyString(plain(item))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

func (e *evaluator) evalCount(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	switch val := recv.(type) {
	case *grouped:
		return val.reduce(func(members []interface{}) (interface{}, error) {
			return float64(len(members)), nil
		})
	case string:
		return float64(utf8.RuneCountInString(val)), nil
	default:
		items, err := seqOf("count", recv)
		if err != nil {
			return nil, err
		}
		return float64(len(items)), nil
	}
}

func (e *evaluator) evalUnion(t reql.Term) (interface{}, error) {
	left, err := e.seqArg(t, "union")
	if err != nil {
		return nil, err
	}
	rv, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	right, err := seqOf("union", rv)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(left)+len(right))
	out = append(out, left...)
	return append(out, right...), nil
}

func (e *evaluator) evalEqJoin(t reql.Term) (interface{}, error) {
	left, err := e.seqArg(t, "eq_join")
	if err != nil {
		return nil, err
	}
	field, err := e.str(t.Args()[1], "eq_join")
	if err != nil {
		return nil, err
	}
	right, err := e.tableArg(t.Args()[2], "eq_join")
	if err != nil {
		return nil, err
	}
	var idx *index
	if name, ok := t.OptArg("index"); ok {
		idx, err = readyIndex(right.tbl, name.(string))
		if err != nil {
			return nil, err
		}
	}

	out := make([]interface{}, 0, len(left))
	for _, item := range left {
		doc, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		v, ok := doc[field]
		if !ok {
			continue
		}
		if idx == nil {
			if match, ok := right.tbl.docs[keyString(v)]; ok {
				out = append(out, map[string]interface{}{"left": doc, "right": match})
			}
			continue
		}
		for _, ks := range right.tbl.order {
			rdoc := right.tbl.docs[ks]
			iv, present, err := e.indexValue(idx, rdoc)
			if err != nil {
				return nil, err
			}
			if present && equalVals(iv, v) {
				out = append(out, map[string]interface{}{"left": doc, "right": rdoc})
			}
		}
	}
	return out, nil
}

func (e *evaluator) evalZip(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, "zip")
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		pair, ok := item.(map[string]interface{})
		if !ok {
			return nil, typeErr("zip", "join pair", item)
		}
		l, _ := pair["left"].(map[string]interface{})
		r, _ := pair["right"].(map[string]interface{})
		if l == nil || r == nil {
			return nil, typeErr("zip", "join pair", item)
		}
		out[i] = deepMerge(l, r)
	}
	return out, nil
}

func (e *evaluator) evalGroup(t reql.Term) (interface{}, error) {
	items, err := e.seqArg(t, "group")
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(t.Args())-1)
	for i, a := range t.Args()[1:] {
		f, err := e.str(a, "group")
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}

	g := &grouped{}
	slots := make(map[string]int)
	for _, item := range items {
		doc, ok := item.(map[string]interface{})
		if !ok {
			return nil, typeErr("group", "object", item)
		}
		var key interface{}
		if len(fields) == 1 {
			key = doc[fields[0]]
		} else {
			parts := make([]interface{}, len(fields))
			for i, f := range fields {
				parts[i] = doc[f]
			}
			key = parts
		}
		ks := keyString(key)
		slot, seen := slots[ks]
		if !seen {
			slot = len(g.keys)
			slots[ks] = slot
			g.keys = append(g.keys, key)
			g.groups = append(g.groups, nil)
		}
		g.groups[slot] = append(g.groups[slot], item)
	}
	return g, nil
}

// reduce maps each group's members to a reduction, yielding the flattened
// {group, reduction} form.
func (g *grouped) reduce(fn func(members []interface{}) (interface{}, error)) (interface{}, error) {
	out := make([]interface{}, len(g.keys))
	for i, k := range g.keys {
		red, err := fn(g.groups[i])
		if err != nil {
			return nil, err
		}
		out[i] = map[string]interface{}{"group": k, "reduction": red}
	}
	return out, nil
}

func (e *evaluator) evalAggregate(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	var field string
	if len(t.Args()) > 1 {
		field, err = e.str(t.Args()[1], t.Kind().String())
		if err != nil {
			return nil, err
		}
	}
	if g, ok := recv.(*grouped); ok {
		return g.reduce(func(members []interface{}) (interface{}, error) {
			return aggregate(t.Kind(), members, field)
		})
	}
	items, err := seqOf(t.Kind().String(), recv)
	if err != nil {
		return nil, err
	}
	return aggregate(t.Kind(), items, field)
}

// aggregate implements sum, avg, min and max. With a field, documents
// lacking it are skipped; min and max return the whole element, not the
// extracted value.
func aggregate(kind reql.Kind, items []interface{}, field string) (interface{}, error) {
	valueOf := func(item interface{}) (interface{}, bool, error) {
		if field == "" {
			return plain(item), true, nil
		}
		doc, ok := item.(map[string]interface{})
		if !ok {
			return nil, false, typeErr(kind.String(), "object", item)
		}
		v, ok := doc[field]
		return v, ok, nil
	}

	switch kind {
	case reql.KindSum, reql.KindAvg:
		var sum float64
		var n int
		for _, item := range items {
			v, ok, err := valueOf(item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			f, isNum := v.(float64)
			if !isNum {
				return nil, typeErr(kind.String(), "number", v)
			}
			sum += f
			n++
		}
		if kind == reql.KindSum {
			return sum, nil
		}
		if n == 0 {
			return nil, fmt.Errorf("memdb: cannot take the average of an empty sequence")
		}
		return sum / float64(n), nil
	default: // min, max
		var best interface{}
		var bestVal interface{}
		found := false
		for _, item := range items {
			v, ok, err := valueOf(item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if !found {
				best, bestVal, found = plain(item), v, true
				continue
			}
			c := compareVals(v, bestVal)
			if (kind == reql.KindMin && c < 0) || (kind == reql.KindMax && c > 0) {
				best, bestVal = plain(item), v
			}
		}
		if !found {
			return nil, fmt.Errorf("memdb: cannot take the %s of an empty sequence", kind)
		}
		return best, nil
	}
}
