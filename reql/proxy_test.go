package reql

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestOperatorKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		q    Query
		kind Kind
	}{
		{"number_add", Number(2).Add(3), KindAdd},
		{"number_mod", Number(7).Mod(2), KindMod},
		{"number_gt", Number(2).Gt(1), KindGt},
		{"string_concat", String("a").Add("b"), KindAdd},
		{"string_match", String("abc").Match("^a"), KindMatch},
		{"string_count", String("héllo").Count(), KindCount},
		{"bool_and", Bool(true).And(false), KindAnd},
		{"bool_not", Bool(true).Not(), KindNot},
		{"array_append", Array(1, 2).Append(3), KindAppend},
		{"array_includes", Array(1, 2).Includes(2), KindContains},
		{"object_keys", Object(map[string]interface{}{"a": 1}).Keys(), KindKeys},
		{"object_merge", Object(map[string]interface{}{"a": 1}).Merge(map[string]interface{}{"b": 2}), KindMerge},
		{"time_year", Now().Year(), KindYear},
		{"time_during", Now().During(EpochTime(0), EpochTime(1)), KindDuring},
		{"any_field", Expr(map[string]interface{}{"a": 1}).Field("a"), KindBracket},
		{"any_index", Expr([]interface{}{1, 2}).Index(0), KindNth},
		{"any_default", Expr(nil).Default("x"), KindDefault},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			term, err := tc.q.Build()
			if err != nil {
				t.Fatal(err)
			}
			if term.Kind() != tc.kind {
				t.Errorf("got kind %s, want %s", term.Kind(), tc.kind)
			}
		})
	}
}

func TestOperatorChainWire(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"arith_chain", Number(10).Sub(3).Mul(2), `[26,[[25,[10,3]],2]]`},
		{"compare_chain", Number(1).Add(2).Eq(3), `[17,[[24,[1,2]],3]]`},
		{"field_chain", Expr(map[string]interface{}{}).Field("a").Field("b"), `[170,[[170,[{},"a"]],"b"]]`},
		{"string_pipeline", String("Hi There").Downcase().Split(" "), `[149,[[142,["Hi There"]]," "]]`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			term, err := tc.q.Build()
			if err != nil {
				t.Fatal(err)
			}
			got, err := json.Marshal(term)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTimeDatumConversion(t *testing.T) {
	t.Parallel()
	// time.Time literals become EPOCH_TIME terms so they survive the wire
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	term, err := Time(at).Build()
	if err != nil {
		t.Fatal(err)
	}
	if term.Kind() != KindEpochTime {
		t.Fatalf("got kind %s, want %s", term.Kind(), KindEpochTime)
	}
	sec, ok := term.Args()[0].Datum().(float64)
	if !ok || sec != float64(at.Unix()) {
		t.Errorf("got epoch %v, want %d", term.Args()[0].Datum(), at.Unix())
	}
}

func TestBracketKeyValidation(t *testing.T) {
	t.Parallel()
	_, err := Expr(map[string]interface{}{"a": 1}).Field(true).Build()
	if err == nil {
		t.Fatal("expected a build error for a bool key")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestFuncCapture(t *testing.T) {
	t.Parallel()
	term, err := DB("d").Table("t").Filter(func(row ObjectTerm) BoolTerm {
		return row.Field("age").AsNumber().Gt(21)
	}).Build()
	if err != nil {
		t.Fatal(err)
	}
	fn := term.Args()[1]
	if fn.Kind() != KindFunc {
		t.Fatalf("predicate must lower to FUNC, got %s", fn.Kind())
	}
	params := fn.Args()[0]
	if params.Kind() != KindMakeArray || len(params.Args()) != 1 {
		t.Fatalf("FUNC must carry one parameter, got %s", params)
	}
	paramID := params.Args()[0].Datum()

	// the body must reference the parameter through a VAR term
	var sawVar bool
	fn.Args()[1].Walk(func(n Term) bool {
		if n.Kind() == KindVar && n.Args()[0].Datum() == paramID {
			sawVar = true
		}
		return true
	})
	if !sawVar {
		t.Error("function body does not reference its parameter")
	}
}

func TestFuncVarIDsAreUnique(t *testing.T) {
	t.Parallel()
	idOf := func(q Query) interface{} {
		term, err := q.Build()
		if err != nil {
			t.Fatal(err)
		}
		return term.Args()[1].Args()[0].Args()[0].Datum()
	}
	tbl := DB("d").Table("t")
	a := idOf(tbl.Filter(func(row ObjectTerm) BoolTerm { return row.Field("x").Eq(1) }))
	b := idOf(tbl.Filter(func(row ObjectTerm) BoolTerm { return row.Field("x").Eq(1) }))
	if a == b {
		t.Errorf("two captures must get distinct variable ids, both %v", a)
	}
}

func TestDoCapturesValue(t *testing.T) {
	t.Parallel()
	term, err := Expr(5).Do(func(v AnyTerm) interface{} {
		return v.AsNumber().Mul(2)
	}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if term.Kind() != KindFuncCall {
		t.Fatalf("got kind %s, want %s", term.Kind(), KindFuncCall)
	}
	if term.Args()[0].Kind() != KindFunc {
		t.Errorf("first argument must be the FUNC, got %s", term.Args()[0].Kind())
	}
	if got := term.Args()[1].Datum(); got != 5 {
		t.Errorf("captured value = %v, want 5", got)
	}
}

func TestSelectorGrammar(t *testing.T) {
	t.Parallel()
	valid := []interface{}{
		"name",
		[]string{"a", "b"},
		[]interface{}{"a", map[string]interface{}{"b": true}},
		map[string]interface{}{"a": true, "b": map[string]interface{}{"c": true}},
	}
	for _, sel := range valid {
		if _, err := DB("d").Table("t").Pluck(sel).Build(); err != nil {
			t.Errorf("selector %v rejected: %v", sel, err)
		}
	}
	invalid := []interface{}{
		42,
		map[string]interface{}{"a": false},
		[]interface{}{1},
		map[string]interface{}{"a": 3},
	}
	for _, sel := range invalid {
		if _, err := DB("d").Table("t").Pluck(sel).Build(); err == nil {
			t.Errorf("selector %v accepted, want error", sel)
		}
	}
}

func TestShapeNarrowing(t *testing.T) {
	t.Parallel()
	tbl := DB("d").Table("t")

	// selection-preserving transforms keep write capability
	sel := tbl.Filter(map[string]interface{}{"a": 1}).OrderBy("b").Limit(3)
	if _, err := sel.Update(map[string]interface{}{"c": 2}).Build(); err != nil {
		t.Errorf("filtered selection must still update: %v", err)
	}
	if _, err := tbl.Between(1, 5).Delete().Build(); err != nil {
		t.Errorf("between selection must still delete: %v", err)
	}

	// nth on a selection narrows to a single selection with writes
	if _, err := sel.Nth(0).Replace(map[string]interface{}{"id": 1}).Build(); err != nil {
		t.Errorf("nth of a selection must still replace: %v", err)
	}
}
