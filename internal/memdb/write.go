package memdb

import (
	"fmt"

	"github.com/google/uuid"

	"reqlcore/reql"
)

// writeCounters accumulates one write operation's summary. memdb reports
// every counter explicitly, zeros included.
type writeCounters struct {
	inserted, replaced, unchanged, deleted, skipped, errors float64

	firstError string
	generated  []string
	changes    []interface{}
}

func (c *writeCounters) fail(msg string) {
	c.errors++
	if c.firstError == "" {
		c.firstError = msg
	}
}

func (c *writeCounters) change(returnChanges bool, old, new map[string]interface{}) {
	if !returnChanges {
		return
	}
	ch := make(map[string]interface{}, 2)
	if old != nil {
		ch["old_val"] = old
	}
	if new != nil {
		ch["new_val"] = new
	}
	c.changes = append(c.changes, ch)
}

func (c *writeCounters) summary(returnChanges bool) map[string]interface{} {
	out := map[string]interface{}{
		"inserted":  c.inserted,
		"replaced":  c.replaced,
		"unchanged": c.unchanged,
		"deleted":   c.deleted,
		"skipped":   c.skipped,
		"errors":    c.errors,
	}
	if c.errors > 0 {
		out["first_error"] = c.firstError
	}
	if len(c.generated) > 0 {
		keys := make([]interface{}, len(c.generated))
		for i, k := range c.generated {
			keys[i] = k
		}
		out["generated_keys"] = keys
	}
	if returnChanges {
		changes := c.changes
		if changes == nil {
			changes = []interface{}{}
		}
		out["changes"] = changes
	}
	return out
}

func boolOpt(t reql.Term, name string) bool {
	v, ok := t.OptArg(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (e *evaluator) evalWrite(t reql.Term) (interface{}, error) {
	switch t.Kind() {
	case reql.KindInsert:
		return e.evalInsert(t)
	case reql.KindDelete:
		return e.evalDelete(t)
	default:
		return e.evalUpdateReplace(t)
	}
}

func (e *evaluator) evalInsert(t reql.Term) (interface{}, error) {
	tv, err := e.tableArg(t.Args()[0], "insert")
	if err != nil {
		return nil, err
	}
	v, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}

	var docs []interface{}
	switch val := plain(v).(type) {
	case map[string]interface{}:
		docs = []interface{}{val}
	case []interface{}:
		docs = val
	default:
		return nil, typeErr("insert", "object or array of objects", v)
	}

	conflict := reql.ConflictError
	if c, ok := t.OptArg("conflict"); ok {
		conflict = c.(string)
	}
	returnChanges := boolOpt(t, "return_changes")

	tbl := tv.tbl
	var c writeCounters
	for _, item := range docs {
		doc, ok := item.(map[string]interface{})
		if !ok {
			c.fail(typeErr("insert", "object", item).Error())
			continue
		}
		key, hasKey := doc[tbl.pkey]
		if !hasKey {
			id := uuid.NewString()
			withID := make(map[string]interface{}, len(doc)+1)
			for k, fv := range doc {
				withID[k] = fv
			}
			withID[tbl.pkey] = id
			doc, key = withID, id
			c.generated = append(c.generated, id)
		}
		ks := keyString(key)
		old, exists := tbl.docs[ks]
		if !exists {
			tbl.docs[ks] = doc
			tbl.order = append(tbl.order, ks)
			c.inserted++
			c.change(returnChanges, nil, doc)
			e.publish(tbl, ks, nil, doc)
			continue
		}
		switch conflict {
		case reql.ConflictError:
			c.fail(fmt.Sprintf("Duplicate primary key `%s`: %s", tbl.pkey, ks))
		case reql.ConflictReplace:
			if equalVals(old, doc) {
				c.unchanged++
				continue
			}
			tbl.docs[ks] = doc
			c.replaced++
			c.change(returnChanges, old, doc)
			e.publish(tbl, ks, old, doc)
		case reql.ConflictUpdate:
			merged := deepMerge(old, doc)
			if equalVals(old, merged) {
				c.unchanged++
				continue
			}
			tbl.docs[ks] = merged
			c.replaced++
			c.change(returnChanges, old, merged)
			e.publish(tbl, ks, old, merged)
		}
	}
	return c.summary(returnChanges), nil
}

// writeTarget resolves a write receiver to its table and rows; skipped
// reports a GET that selected nothing.
func writeTarget(op string, v interface{}) (tbl *table, rows []row, skipped bool, err error) {
	switch val := v.(type) {
	case *tableVal:
		sel, err := rowsOf(val)
		if err != nil {
			return nil, nil, false, err
		}
		return val.tbl, sel.rows, false, nil
	case *selRows:
		if val.tbl == nil {
			return nil, nil, false, fmt.Errorf("memdb: %s requires a selection, not a plain sequence", op)
		}
		return val.tbl, val.rows, false, nil
	case *selRow:
		if val.tbl == nil {
			return nil, nil, false, fmt.Errorf("memdb: %s requires a selection, not a plain value", op)
		}
		if !val.exists {
			return val.tbl, nil, true, nil
		}
		return val.tbl, []row{{key: val.key, doc: val.doc}}, false, nil
	default:
		return nil, nil, false, typeErr(op, "selection", v)
	}
}

func (e *evaluator) evalUpdateReplace(t reql.Term) (interface{}, error) {
	opName := t.Kind().String()
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	tbl, rows, skipped, err := writeTarget(opName, recv)
	if err != nil {
		return nil, err
	}
	patch, err := e.eval(t.Args()[1])
	if err != nil {
		return nil, err
	}
	returnChanges := boolOpt(t, "return_changes")

	var c writeCounters
	if skipped {
		c.skipped++
		return c.summary(returnChanges), nil
	}
	for _, r := range rows {
		var pv interface{}
		switch p := patch.(type) {
		case *funcVal:
			pv, err = e.apply(p, []interface{}{r.doc})
			if err != nil {
				c.fail(err.Error())
				continue
			}
		default:
			pv = plain(patch)
		}

		if t.Kind() == reql.KindReplace && pv == nil {
			// replacing with null removes the document
			tbl.remove(r.key)
			c.deleted++
			c.change(returnChanges, r.doc, nil)
			e.publish(tbl, r.key, r.doc, nil)
			continue
		}
		pm, ok := pv.(map[string]interface{})
		if !ok {
			c.fail(typeErr(opName, "object", pv).Error())
			continue
		}

		var next map[string]interface{}
		if t.Kind() == reql.KindUpdate {
			next = deepMerge(r.doc, pm)
		} else {
			next = pm
		}
		if !equalVals(r.doc[tbl.pkey], next[tbl.pkey]) {
			c.fail(fmt.Sprintf("Primary key `%s` cannot be changed", tbl.pkey))
			continue
		}
		if equalVals(r.doc, next) {
			c.unchanged++
			continue
		}
		tbl.docs[r.key] = next
		c.replaced++
		c.change(returnChanges, r.doc, next)
		e.publish(tbl, r.key, r.doc, next)
	}
	return c.summary(returnChanges), nil
}

func (e *evaluator) evalDelete(t reql.Term) (interface{}, error) {
	recv, err := e.eval(t.Args()[0])
	if err != nil {
		return nil, err
	}
	tbl, rows, skipped, err := writeTarget("delete", recv)
	if err != nil {
		return nil, err
	}
	returnChanges := boolOpt(t, "return_changes")

	var c writeCounters
	if skipped {
		c.skipped++
		return c.summary(returnChanges), nil
	}
	for _, r := range rows {
		if _, exists := tbl.docs[r.key]; !exists {
			c.skipped++
			continue
		}
		tbl.remove(r.key)
		c.deleted++
		c.change(returnChanges, r.doc, nil)
		e.publish(tbl, r.key, r.doc, nil)
	}
	return c.summary(returnChanges), nil
}

// remove drops a document, preserving the relative order of the rest.
func (t *table) remove(key string) {
	delete(t.docs, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
