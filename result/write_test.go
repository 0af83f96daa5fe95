package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWriteDistinguishesAbsentFromZero(t *testing.T) {
	t.Parallel()
	w, err := ParseWrite(json.RawMessage(`{"inserted":3,"errors":0}`))
	require.NoError(t, err)

	assert.Equal(t, int64(3), w.InsertedN())
	require.NotNil(t, w.Errors, "explicit zero must stay present")
	assert.Equal(t, int64(0), *w.Errors)
	assert.Nil(t, w.Deleted, "unreported counter must stay absent")
	assert.Equal(t, int64(0), w.DeletedN(), "accessor applies absent-means-zero")
}

func TestParseWriteFirstErrorRequiresErrors(t *testing.T) {
	t.Parallel()
	// first_error without a positive error count is dropped
	w, err := ParseWrite(json.RawMessage(`{"inserted":1,"errors":0,"first_error":"stale"}`))
	require.NoError(t, err)
	assert.Empty(t, w.FirstError)

	w, err = ParseWrite(json.RawMessage(`{"inserted":1,"errors":2,"first_error":"duplicate key"}`))
	require.NoError(t, err)
	assert.Equal(t, "duplicate key", w.FirstError)
}

func TestParseWriteGeneratedKeysOrder(t *testing.T) {
	t.Parallel()
	w, err := ParseWrite(json.RawMessage(`{"inserted":3,"generated_keys":["k1","k2"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, w.GeneratedKeys)
}

func TestParseWriteMalformed(t *testing.T) {
	t.Parallel()
	_, err := ParseWrite(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestParseWriteChanges(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{"replaced":1,"changes":[{"old_val":{"id":1,"v":1},"new_val":{"id":1,"v":2}}]}`)
	w, err := ParseWrite(raw)
	require.NoError(t, err)
	require.Len(t, w.Changes, 1)
	assert.Equal(t, ChangeUpdate, w.Changes[0].Type())
}

func TestParseDDLChanges(t *testing.T) {
	t.Parallel()
	ic, err := ParseIndexChange(json.RawMessage(`{"created":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), *ic.Created)
	assert.Nil(t, ic.Dropped)

	tc, err := ParseTableChange(json.RawMessage(`{"tables_dropped":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), *tc.TablesDropped)

	dc, err := ParseDatabaseChange(json.RawMessage(`{"dbs_dropped":1,"tables_dropped":4}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), *dc.DBsDropped)
	assert.Equal(t, int64(4), *dc.TablesDropped)
}
