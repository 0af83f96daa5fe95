package memdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"reqlcore/engine"
	"reqlcore/reql"
	"reqlcore/result"
)

// Runtime values are decoded-JSON shapes: nil, bool, float64, string,
// []interface{}, map[string]interface{}, plus time.Time for the TIME
// pseudo-type. Selections additionally carry row identity so writes can
// reach their source documents.

// tableVal is a whole-table selection, resolved lazily.
type tableVal struct {
	db   *database
	tbl  *table
	name string
}

// row couples a document with its primary-key string.
type row struct {
	key string
	doc map[string]interface{}
}

// selRows is a multi-row selection.
type selRows struct {
	tbl  *table
	rows []row
}

// selRow is a single-row selection; exists is false for a GET miss.
type selRow struct {
	tbl    *table
	key    string
	doc    map[string]interface{}
	exists bool
}

// grouped is the result of GROUP: ordered (group key, members) pairs.
type grouped struct {
	keys   []interface{}
	groups [][]interface{}
}

// funcVal is a captured FUNC term.
type funcVal struct {
	params []float64
	body   reql.Term
}

// errMissingField distinguishes absent fields from every other failure so
// DEFAULT can substitute for them.
var errMissingField = errors.New("memdb: no attribute in object")

func missingField(name string) error {
	return fmt.Errorf("%w: %s", errMissingField, name)
}

// typeErr reports an operator applied to a runtime value whose type does
// not support it.
func typeErr(op, want string, got interface{}) error {
	return fmt.Errorf("memdb: %s: expected %s, got %s", op, want, typeName(got))
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case time.Time:
		return "time"
	case *tableVal, *selRows:
		return "selection"
	case *selRow:
		return "single selection"
	case *grouped:
		return "grouped data"
	case *funcVal:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// normalize converts arbitrary Go literals captured in datum terms into
// the runtime value model.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, bool, float64, string, time.Time:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(val, &decoded); err != nil {
			return nil
		}
		return decoded
	default:
		// last resort: round-trip through JSON
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		var decoded interface{}
		if err := json.Unmarshal(b, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}

// plain strips selection identity, yielding the bare value.
func plain(v interface{}) interface{} {
	switch val := v.(type) {
	case *tableVal:
		docs := make([]interface{}, 0, len(val.tbl.order))
		for _, key := range val.tbl.order {
			docs = append(docs, val.tbl.docs[key])
		}
		return docs
	case *selRows:
		docs := make([]interface{}, len(val.rows))
		for i, r := range val.rows {
			docs[i] = r.doc
		}
		return docs
	case *selRow:
		if !val.exists {
			return nil
		}
		return val.doc
	case *grouped:
		out := make([]interface{}, len(val.keys))
		for i, k := range val.keys {
			out[i] = map[string]interface{}{"group": k, "reduction": val.groups[i]}
		}
		return out
	default:
		return val
	}
}

// rowsOf materializes a selection's rows; plain arrays become identity-free
// rows so transforms work uniformly.
func rowsOf(v interface{}) (*selRows, error) {
	switch val := v.(type) {
	case *tableVal:
		rows := make([]row, 0, len(val.tbl.order))
		for _, key := range val.tbl.order {
			rows = append(rows, row{key: key, doc: val.tbl.docs[key]})
		}
		return &selRows{tbl: val.tbl, rows: rows}, nil
	case *selRows:
		return val, nil
	case *selRow:
		if !val.exists {
			return &selRows{tbl: val.tbl}, nil
		}
		return &selRows{tbl: val.tbl, rows: []row{{key: val.key, doc: val.doc}}}, nil
	case []interface{}:
		rows := make([]row, len(val))
		for i, item := range val {
			doc, _ := item.(map[string]interface{})
			rows[i] = row{doc: doc}
			if doc == nil {
				rows[i].doc = nil
			}
		}
		return &selRows{rows: rows}, nil
	default:
		return nil, typeErr("sequence operation", "sequence", v)
	}
}

// seqOf returns the value as a plain element slice.
func seqOf(op string, v interface{}) ([]interface{}, error) {
	switch val := plain(v).(type) {
	case []interface{}:
		return val, nil
	case nil:
		return nil, nil
	default:
		return nil, typeErr(op, "sequence", v)
	}
}

// compareVals orders values RethinkDB-style: cross-type comparisons order
// by type rank (null < bool < number < time < string < array < object).
func compareVals(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case float64:
		return cmpFloat(av, b.(float64))
	case time.Time:
		return cmpFloat(timeEpoch(av), timeEpoch(b.(time.Time)))
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case []interface{}:
		bv := b.([]interface{})
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := compareVals(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(av), len(bv))
	case map[string]interface{}:
		bv := b.(map[string]interface{})
		ak, bk := sortedKeys(av), sortedKeys(bv)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := compareVals(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := compareVals(av[ak[i]], bv[bk[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ak), len(bk))
	default:
		return 0
	}
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	case []interface{}:
		return 5
	case map[string]interface{}:
		return 6
	default:
		return 7
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func timeEpoch(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// equalVals is deep equality under the same ordering model.
func equalVals(a, b interface{}) bool { return compareVals(a, b) == 0 }

// keyString canonicalizes a primary-key value for map storage.
func keyString(v interface{}) string {
	b, err := json.Marshal(encodable(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// encodable converts runtime values into JSON-marshalable form, mapping
// time.Time to the TIME pseudo-type.
func encodable(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return result.PseudoTime(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = encodable(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = encodable(item)
		}
		return out
	default:
		return val
	}
}

func encodeValue(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(encodable(v))
	if err != nil {
		return nil, fmt.Errorf("memdb: encode result: %w", err)
	}
	return b, nil
}

// outcomeOf packages an evaluated root value as an engine outcome, using
// the root kind to pick the shape.
func outcomeOf(root reql.Term, v interface{}) (engine.Outcome, error) {
	switch root.Kind() {
	case reql.KindInsert, reql.KindUpdate, reql.KindReplace, reql.KindDelete,
		reql.KindIndexCreate, reql.KindIndexDrop,
		reql.KindTableCreate, reql.KindTableDrop,
		reql.KindDBCreate, reql.KindDBDrop:
		raw, err := encodeValue(plain(v))
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Outcome{Kind: engine.OutcomeWrite, Write: raw}, nil
	}
	switch val := plain(v).(type) {
	case []interface{}:
		seq := make([]json.RawMessage, len(val))
		for i, item := range val {
			raw, err := encodeValue(item)
			if err != nil {
				return engine.Outcome{}, err
			}
			seq[i] = raw
		}
		return engine.Outcome{Kind: engine.OutcomeSequence, Sequence: seq}, nil
	default:
		raw, err := encodeValue(val)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Outcome{Kind: engine.OutcomeAtom, Atom: raw}, nil
	}
}

// deepMerge implements update semantics: objects merge recursively, any
// other value (arrays included) is replaced.
func deepMerge(dst, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(patch))
	for k, v := range dst {
		out[k] = v
	}
	for k, pv := range patch {
		if pm, ok := pv.(map[string]interface{}); ok {
			if dm, ok := out[k].(map[string]interface{}); ok {
				out[k] = deepMerge(dm, pm)
				continue
			}
		}
		out[k] = pv
	}
	return out
}

// matchesPattern implements literal filter patterns: a conjunction of
// field equalities; a pattern field absent from the document means no
// match. Nested pattern objects recurse.
func matchesPattern(doc map[string]interface{}, pattern map[string]interface{}) bool {
	for k, want := range pattern {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if wantObj, isObj := want.(map[string]interface{}); isObj {
			gotObj, gotIsObj := got.(map[string]interface{})
			if !gotIsObj || !matchesPattern(gotObj, wantObj) {
				return false
			}
			continue
		}
		if !equalVals(got, want) {
			return false
		}
	}
	return true
}
