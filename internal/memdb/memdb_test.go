package memdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqlcore/engine"
	"reqlcore/reql"
)

func newRunner(t *testing.T) *engine.Runner {
	t.Helper()
	s, err := New(4)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return engine.New(s)
}

func mustRun(t *testing.T, r *engine.Runner, q reql.Query) {
	t.Helper()
	cur, err := r.Run(context.Background(), q)
	require.NoError(t, err)
	require.NoError(t, cur.Close())
}

// setup seeds app.users with a small fixed data set.
func setup(t *testing.T) (*engine.Runner, reql.Table) {
	t.Helper()
	r := newRunner(t)
	mustRun(t, r, reql.DBCreate("app"))
	mustRun(t, r, reql.DB("app").TableCreate("users"))
	tbl := reql.DB("app").Table("users")
	w, err := r.RunWrite(context.Background(), tbl.Insert([]interface{}{
		map[string]interface{}{"id": "alice", "age": 31, "status": "active", "team": "core", "email": "alice@example.com", "profile": map[string]interface{}{"city": "Oslo"}},
		map[string]interface{}{"id": "bob", "age": 25, "status": "inactive", "team": "infra", "email": "bob@example.com"},
		map[string]interface{}{"id": "carol", "age": 40, "status": "active", "team": "core"},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(3), w.InsertedN())
	return r, tbl
}

func runDocs(t *testing.T, r *engine.Runner, q reql.Query) []map[string]interface{} {
	t.Helper()
	cur, err := r.Run(context.Background(), q)
	require.NoError(t, err)
	items, err := cur.All()
	require.NoError(t, err)
	out := make([]map[string]interface{}, len(items))
	for i, raw := range items {
		require.NoError(t, json.Unmarshal(raw, &out[i]))
	}
	return out
}

func runRaw(t *testing.T, r *engine.Runner, q reql.Query) string {
	t.Helper()
	cur, err := r.Run(context.Background(), q)
	require.NoError(t, err)
	item, err := cur.Next()
	require.NoError(t, err)
	return string(item)
}

// runAll renders a sequence result as one JSON array literal.
func runAll(t *testing.T, r *engine.Runner, q reql.Query) string {
	t.Helper()
	cur, err := r.Run(context.Background(), q)
	require.NoError(t, err)
	items, err := cur.All()
	require.NoError(t, err)
	parts := make([]string, len(items))
	for i, raw := range items {
		parts[i] = string(raw)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func ids(docs []map[string]interface{}) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["id"].(string)
	}
	return out
}

func TestGetRoundTrip(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	got := runRaw(t, r, tbl.Get("bob"))
	assert.JSONEq(t, `{"id":"bob","age":25,"status":"inactive","team":"infra","email":"bob@example.com"}`, got)

	assert.Equal(t, "null", runRaw(t, r, tbl.Get("nobody")))
}

func TestTableScanPreservesInsertOrder(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids(runDocs(t, r, tbl)))
}

func TestMissingTableFailsExecution(t *testing.T) {
	t.Parallel()
	r, _ := setup(t)

	_, err := r.Run(context.Background(), reql.DB("app").Table("ghost"))
	var eerr *engine.ExecutionError
	require.ErrorAs(t, err, &eerr)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestInsertGeneratesKeys(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	w, err := r.RunWrite(context.Background(), tbl.Insert([]interface{}{
		map[string]interface{}{"v": 1},
		map[string]interface{}{"v": 2},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.InsertedN())
	require.Len(t, w.GeneratedKeys, 2)

	got := runRaw(t, r, tbl.Get(w.GeneratedKeys[1]))
	assert.Contains(t, got, `"v":2`)
}

func TestInsertConflict(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	ctx := context.Background()
	dup := map[string]interface{}{"id": "alice", "age": 99}

	w, err := r.RunWrite(ctx, tbl.Insert(dup))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ErrorsN())
	assert.Contains(t, w.FirstError, "Duplicate primary key")

	w, err = r.RunWrite(ctx, tbl.Insert(dup, reql.OptArgs{"conflict": reql.ConflictReplace}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ReplacedN())
	assert.JSONEq(t, `{"id":"alice","age":99}`, runRaw(t, r, tbl.Get("alice")))

	// conflict:update merges into the replaced doc
	w, err = r.RunWrite(ctx, tbl.Insert(map[string]interface{}{"id": "alice", "status": "retired"}, reql.OptArgs{"conflict": reql.ConflictUpdate}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ReplacedN())
	assert.JSONEq(t, `{"id":"alice","age":99,"status":"retired"}`, runRaw(t, r, tbl.Get("alice")))

	// re-inserting the identical doc under conflict:replace is unchanged
	w, err = r.RunWrite(ctx, tbl.Insert(map[string]interface{}{"id": "alice", "age": 99, "status": "retired"}, reql.OptArgs{"conflict": reql.ConflictReplace}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.UnchangedN())
}

func TestFilterPattern(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	docs := runDocs(t, r, tbl.Filter(map[string]interface{}{"status": "active"}))
	assert.Equal(t, []string{"alice", "carol"}, ids(docs))

	// nested pattern
	docs = runDocs(t, r, tbl.Filter(map[string]interface{}{"profile": map[string]interface{}{"city": "Oslo"}}))
	assert.Equal(t, []string{"alice"}, ids(docs))

	// a pattern over a field some docs lack matches only docs that have it
	docs = runDocs(t, r, tbl.Filter(map[string]interface{}{"email": "bob@example.com"}))
	assert.Equal(t, []string{"bob"}, ids(docs))
}

func TestFilterFunction(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	docs := runDocs(t, r, tbl.Filter(func(u reql.ObjectTerm) interface{} {
		return u.Field("age").Gt(30)
	}))
	assert.Equal(t, []string{"alice", "carol"}, ids(docs))

	// a predicate reading a missing field drops the doc instead of failing
	docs = runDocs(t, r, tbl.Filter(func(u reql.ObjectTerm) interface{} {
		return u.Field("email").Eq("alice@example.com")
	}))
	assert.Equal(t, []string{"alice"}, ids(docs))

	// compound predicate
	docs = runDocs(t, r, tbl.Filter(func(u reql.ObjectTerm) interface{} {
		return u.Field("status").Eq("active").And(u.Field("age").Lt(35))
	}))
	assert.Equal(t, []string{"alice"}, ids(docs))
}

func TestFilterCountMatchesMaterialized(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	patterns := []map[string]interface{}{
		{"status": "active"},
		{"status": "inactive"},
		{"status": "retired"}, // matches nothing
	}
	for _, p := range patterns {
		docs := runDocs(t, r, tbl.Filter(p))
		count := runRaw(t, r, tbl.Filter(p).Count())
		assert.Equal(t, fmt.Sprintf("%d", len(docs)), count, "count must equal the materialized length for %v", p)
	}
	assert.Equal(t, "0", runRaw(t, r, tbl.Filter(map[string]interface{}{"status": "retired"}).Count()))
}

func TestGetAllByPrimaryKey(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	// results follow key-argument order, absent keys are skipped
	docs := runDocs(t, r, tbl.GetAll("carol", "nobody", "alice"))
	assert.Equal(t, []string{"carol", "alice"}, ids(docs))
}

func TestSecondaryIndexReads(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, tbl.IndexCreate("team"))
	mustRun(t, r, tbl.IndexWait("team"))

	docs := runDocs(t, r, tbl.GetAll("core", reql.OptArgs{"index": "team"}))
	assert.Equal(t, []string{"alice", "carol"}, ids(docs))
}

func TestUnreadyIndexFails(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, tbl.IndexCreate("team"))

	_, err := r.Run(context.Background(), tbl.GetAll("core", reql.OptArgs{"index": "team"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestComputedIndex(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, tbl.IndexCreateFunc("mail", func(u reql.ObjectTerm) interface{} {
		return u.Field("email")
	}))
	mustRun(t, r, tbl.IndexWait("mail"))

	docs := runDocs(t, r, tbl.GetAll("bob@example.com", reql.OptArgs{"index": "mail"}))
	assert.Equal(t, []string{"bob"}, ids(docs))

	// carol has no email, so she is absent from the index entirely
	docs = runDocs(t, r, tbl.Between("a", "z", reql.OptArgs{"index": "mail"}))
	assert.Equal(t, []string{"alice", "bob"}, ids(docs))
}

func TestBetweenIsHalfOpen(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, tbl.IndexCreate("age"))
	mustRun(t, r, tbl.IndexWait("age"))

	// [25, 40) keeps the lower bound and excludes the upper
	docs := runDocs(t, r, tbl.Between(25, 40, reql.OptArgs{"index": "age"}))
	assert.Equal(t, []string{"alice", "bob"}, ids(docs))

	// primary-key range
	docs = runDocs(t, r, tbl.Between("alice", "carol"))
	assert.Equal(t, []string{"alice", "bob"}, ids(docs))
}

func TestOrderBy(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	assert.Equal(t, []string{"bob", "alice", "carol"}, ids(runDocs(t, r, tbl.OrderBy("age"))))
	assert.Equal(t, []string{"carol", "alice", "bob"}, ids(runDocs(t, r, tbl.OrderBy(reql.Desc("age")))))

	// docs missing the sort field order before any present value
	assert.Equal(t, []string{"carol", "alice", "bob"}, ids(runDocs(t, r, tbl.OrderBy("email"))))
}

func TestOrderByIndex(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, tbl.IndexCreate("age"))
	mustRun(t, r, tbl.IndexWait("age"))

	docs := runDocs(t, r, tbl.OrderBy(reql.OptArgs{"index": "age"}))
	assert.Equal(t, []string{"bob", "alice", "carol"}, ids(docs))
}

func TestSliceSkipLimitNth(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	byAge := tbl.OrderBy("age")

	assert.Equal(t, []string{"alice"}, ids(runDocs(t, r, byAge.Slice(1, 2))))
	assert.Equal(t, []string{"alice", "carol"}, ids(runDocs(t, r, byAge.Skip(1))))
	assert.Equal(t, []string{"bob", "alice"}, ids(runDocs(t, r, byAge.Limit(2))))
	assert.Contains(t, runRaw(t, r, byAge.Nth(2)), `"carol"`)

	// out-of-range slices clamp instead of failing
	assert.Empty(t, ids(runDocs(t, r, byAge.Skip(10))))
}

func TestPluckWithoutHasFields(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	got := runRaw(t, r, tbl.Get("alice").Pluck("id", map[string]interface{}{"profile": "city"}))
	assert.JSONEq(t, `{"id":"alice","profile":{"city":"Oslo"}}`, got)

	got = runRaw(t, r, tbl.Get("bob").Without("email", "team"))
	assert.JSONEq(t, `{"id":"bob","age":25,"status":"inactive"}`, got)

	docs := runDocs(t, r, tbl.HasFields("email"))
	assert.Equal(t, []string{"alice", "bob"}, ids(docs))
}

func TestGroupAndAggregate(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	cur, err := r.Run(context.Background(), tbl.Group("status").Count())
	require.NoError(t, err)
	items, err := cur.All()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"group":"active","reduction":2}`, string(items[0]))
	assert.JSONEq(t, `{"group":"inactive","reduction":1}`, string(items[1]))

	cur, err = r.Run(context.Background(), tbl.Group("status").Avg("age"))
	require.NoError(t, err)
	items, err = cur.All()
	require.NoError(t, err)
	assert.JSONEq(t, `{"group":"active","reduction":35.5}`, string(items[0]))
}

func TestUngroupShape(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	docs := runDocs(t, r, tbl.Group("team").Ungroup())
	require.Len(t, docs, 2)
	assert.Equal(t, "core", docs[0]["group"])
	members, ok := docs[0]["reduction"].([]interface{})
	require.True(t, ok)
	assert.Len(t, members, 2)
}

func TestScalarAggregates(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	assert.Equal(t, "3", runRaw(t, r, tbl.Count()))
	assert.Equal(t, "96", runRaw(t, r, tbl.Sum("age")))
	assert.Equal(t, "32", runRaw(t, r, tbl.Avg("age")))
	// min/max return the whole winning document
	assert.Contains(t, runRaw(t, r, tbl.Min("age")), `"bob"`)
	assert.Contains(t, runRaw(t, r, tbl.Max("age")), `"carol"`)
}

func TestEqJoinAndZip(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	mustRun(t, r, reql.DB("app").TableCreate("teams"))
	teams := reql.DB("app").Table("teams")
	_, err := r.RunWrite(context.Background(), teams.Insert([]interface{}{
		map[string]interface{}{"id": "core", "name": "Core Platform"},
		map[string]interface{}{"id": "infra", "name": "Infrastructure"},
	}))
	require.NoError(t, err)

	pairs := runDocs(t, r, tbl.EqJoin("team", teams))
	require.Len(t, pairs, 3)
	left, ok := pairs[0]["left"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", left["id"])
	right, ok := pairs[0]["right"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Core Platform", right["name"])

	zipped := runDocs(t, r, tbl.EqJoin("team", teams).Zip())
	assert.Equal(t, "alice", zipped[0]["id"])
	assert.Equal(t, "Core Platform", zipped[0]["name"])
}

func TestMapDistinctContainsUnion(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	statuses := tbl.Map(func(u reql.ObjectTerm) interface{} { return u.Field("status") })
	assert.JSONEq(t, `["active","inactive"]`, runAll(t, r, statuses.Distinct()))

	assert.Equal(t, "true", runRaw(t, r, statuses.Contains("active")))
	assert.Equal(t, "false", runRaw(t, r, statuses.Contains("retired")))

	merged := runDocs(t, r, tbl.Union([]interface{}{map[string]interface{}{"id": "dave"}}))
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, ids(merged))
}

func TestUpdateSummaries(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	ctx := context.Background()

	w, err := r.RunWrite(ctx, tbl.Get("alice").Update(map[string]interface{}{"age": 32}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ReplacedN())

	// same patch again changes nothing
	w, err = r.RunWrite(ctx, tbl.Get("alice").Update(map[string]interface{}{"age": 32}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.UnchangedN())
	assert.Equal(t, int64(0), w.ReplacedN())

	// updating a missing doc is skipped, not an error
	w, err = r.RunWrite(ctx, tbl.Get("nobody").Update(map[string]interface{}{"age": 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.SkippedN())
	assert.Equal(t, int64(0), w.ErrorsN())
}

func TestUpdateWithFunction(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	w, err := r.RunWrite(context.Background(), tbl.Filter(map[string]interface{}{"status": "active"}).Update(func(u reql.ObjectTerm) interface{} {
		return map[string]interface{}{"senior": u.Field("age").Ge(35)}
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.ReplacedN())

	assert.Equal(t, "false", runRaw(t, r, tbl.Get("alice").Field("senior")))
	assert.Equal(t, "true", runRaw(t, r, tbl.Get("carol").Field("senior")))
}

func TestReturnChanges(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)

	w, err := r.RunWrite(context.Background(), tbl.Get("carol").Update(map[string]interface{}{"age": 41}, reql.OptArgs{"return_changes": true}))
	require.NoError(t, err)
	require.Len(t, w.Changes, 1)
	assert.Contains(t, string(w.Changes[0].OldVal), `"age":40`)
	assert.Contains(t, string(w.Changes[0].NewVal), `"age":41`)
}

func TestReplaceSemantics(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	ctx := context.Background()

	// replace swaps the whole document
	w, err := r.RunWrite(ctx, tbl.Get("bob").Replace(map[string]interface{}{"id": "bob", "age": 26}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ReplacedN())
	assert.JSONEq(t, `{"id":"bob","age":26}`, runRaw(t, r, tbl.Get("bob")))

	// changing the primary key is an error
	w, err = r.RunWrite(ctx, tbl.Get("bob").Replace(map[string]interface{}{"id": "robert", "age": 26}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.ErrorsN())
	assert.Contains(t, w.FirstError, "Primary key")

	// replacing with null deletes
	w, err = r.RunWrite(ctx, tbl.Get("bob").Replace(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.DeletedN())
	assert.Equal(t, "null", runRaw(t, r, tbl.Get("bob")))
}

func TestDeleteSummaries(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	ctx := context.Background()

	w, err := r.RunWrite(ctx, tbl.Get("bob").Delete())
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.DeletedN())

	w, err = r.RunWrite(ctx, tbl.Get("bob").Delete())
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.SkippedN())

	// range delete
	w, err = r.RunWrite(ctx, tbl.Filter(map[string]interface{}{"status": "active"}).Delete())
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.DeletedN())
	assert.Equal(t, "0", runRaw(t, r, tbl.Count()))
}

func TestDefaultSubstitutesOnlyMissing(t *testing.T) {
	t.Parallel()
	r, tbl := setup(t)
	_, err := r.RunWrite(context.Background(), tbl.Insert(map[string]interface{}{"id": "flags", "enabled": false, "count": 0, "label": ""}))
	require.NoError(t, err)

	assert.Equal(t, `"none"`, runRaw(t, r, tbl.Get("carol").Field("email").Default("none")))
	// present falsy values are kept, not substituted
	assert.Equal(t, "false", runRaw(t, r, tbl.Get("flags").Field("enabled").Default(true)))
	assert.Equal(t, "0", runRaw(t, r, tbl.Get("flags").Field("count").Default(9)))
	assert.Equal(t, `""`, runRaw(t, r, tbl.Get("flags").Field("label").Default("x")))
}

func TestDDLLifecycle(t *testing.T) {
	t.Parallel()
	r := newRunner(t)
	ctx := context.Background()

	mustRun(t, r, reql.DBCreate("shop"))
	mustRun(t, r, reql.DB("shop").TableCreate("orders"))
	mustRun(t, r, reql.DB("shop").TableCreate("items"))

	assert.JSONEq(t, `["items","orders"]`, runAll(t, r, reql.DB("shop").TableList()))
	assert.Contains(t, runAll(t, r, reql.DBList()), `"shop"`)

	// duplicate creation fails
	_, err := r.Run(ctx, reql.DBCreate("shop"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	mustRun(t, r, reql.DB("shop").TableDrop("items"))
	assert.JSONEq(t, `["orders"]`, runAll(t, r, reql.DB("shop").TableList()))

	orders := reql.DB("shop").Table("orders")
	mustRun(t, r, orders.IndexCreate("total"))
	assert.JSONEq(t, `["total"]`, runAll(t, r, orders.IndexList()))
	mustRun(t, r, orders.IndexDrop("total"))
	assert.JSONEq(t, `[]`, runAll(t, r, orders.IndexList()))

	mustRun(t, r, reql.DBDrop("shop"))
	assert.NotContains(t, runAll(t, r, reql.DBList()), `"shop"`)
}

func TestExpressionArithmetic(t *testing.T) {
	t.Parallel()
	r := newRunner(t)

	assert.Equal(t, "2.5", runRaw(t, r, reql.Number(10).Div(4)))
	assert.Equal(t, "7", runRaw(t, r, reql.Number(3).Add(4)))
	assert.Equal(t, "1", runRaw(t, r, reql.Number(7).Mod(3)))
	assert.Equal(t, `"ab"`, runRaw(t, r, reql.String("a").Add("b")))

	_, err := r.Run(context.Background(), reql.Number(1).Div(0))
	require.Error(t, err)
}

func TestExpressionStrings(t *testing.T) {
	t.Parallel()
	r := newRunner(t)

	assert.Equal(t, `"HELLO"`, runRaw(t, r, reql.String("hello").Upcase()))
	assert.JSONEq(t, `["a","b","c"]`, runRaw(t, r, reql.String("a,b,c").Split(",")))
	assert.Equal(t, "5", runRaw(t, r, reql.String("héllo").Count()))

	m := runRaw(t, r, reql.String("user@example.com").Match("@(.*)"))
	assert.Contains(t, m, `"str":"@example.com"`)
	assert.Equal(t, "null", runRaw(t, r, reql.String("nope").Match("@(.*)")))
}

func TestExpressionObjects(t *testing.T) {
	t.Parallel()
	r := newRunner(t)
	obj := reql.Object(map[string]interface{}{"b": 2, "a": 1})

	assert.JSONEq(t, `["a","b"]`, runRaw(t, r, obj.Keys()))
	assert.JSONEq(t, `{"a":1,"b":2,"c":3}`, runRaw(t, r, obj.Merge(map[string]interface{}{"c": 3})))
}

func TestExpressionTime(t *testing.T) {
	t.Parallel()
	r := newRunner(t)

	assert.Equal(t, "1970", runRaw(t, r, reql.EpochTime(0).Year()))
	assert.Equal(t, "0", runRaw(t, r, reql.EpochTime(0).ToEpochTime()))
	assert.Equal(t, "true", runRaw(t, r, reql.EpochTime(50).During(reql.EpochTime(50), reql.EpochTime(100))))
	assert.Equal(t, "false", runRaw(t, r, reql.EpochTime(100).During(reql.EpochTime(50), reql.EpochTime(100))))
}

func TestApplyRestoresOuterBindings(t *testing.T) {
	t.Parallel()
	s, err := New(1)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	e := &evaluator{store: s, ctx: context.Background(), vars: map[float64]interface{}{
		7: nil, // an outer binding whose value is legitimately null
		8: "outer",
	}}
	fn := &funcVal{params: []float64{7, 8}, body: reql.Expr(true).Term}

	_, err = e.apply(fn, []interface{}{"x", "y"})
	require.NoError(t, err)

	v, ok := e.vars[7]
	require.True(t, ok, "null binding must be restored, not dropped")
	assert.Nil(t, v)
	assert.Equal(t, "outer", e.vars[8])

	// a param with no outer binding leaves no residue
	fresh := &funcVal{params: []float64{9}, body: reql.Expr(true).Term}
	_, err = e.apply(fresh, []interface{}{"z"})
	require.NoError(t, err)
	_, ok = e.vars[9]
	assert.False(t, ok)
}

func TestStorePassthroughs(t *testing.T) {
	t.Parallel()
	s, err := New(2)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	r := engine.New(s)
	ctx := context.Background()

	mustRun(t, r, reql.DBCreate("app"))
	mustRun(t, r, reql.DB("app").TableCreate("users"))
	mustRun(t, r, reql.DB("app").Table("users").IndexCreate("age"))

	dbs, err := s.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, "app")

	tables, err := s.ListTables(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, tables)

	indexes, err := s.ListIndexes(ctx, "app", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, indexes)

	require.NoError(t, s.WaitForIndexes(ctx, "app", "users", []string{"age"}))
	docs := runDocs(t, r, reql.DB("app").Table("users").GetAll("x", reql.OptArgs{"index": "age"}))
	assert.Empty(t, docs)
}
