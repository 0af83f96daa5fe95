// Package result normalizes backend-native responses into the canonical
// result shapes. Callers never construct these types; they are produced by
// the mapper from raw adapter payloads.
package result

import (
	"encoding/json"
	"fmt"
)

// Write summarizes a write operation. Counters are pointers so "operation
// reported nothing" stays distinguishable from "operation explicitly
// reported zero"; the *N accessors apply absent-means-zero semantics.
type Write struct {
	Inserted  *int64 `json:"inserted,omitempty"`
	Replaced  *int64 `json:"replaced,omitempty"`
	Unchanged *int64 `json:"unchanged,omitempty"`
	Deleted   *int64 `json:"deleted,omitempty"`
	Skipped   *int64 `json:"skipped,omitempty"`
	Errors    *int64 `json:"errors,omitempty"`

	// FirstError carries the earliest-encountered error message only and
	// is set iff Errors > 0.
	FirstError string `json:"first_error,omitempty"`

	// GeneratedKeys preserves the insertion order of documents supplied
	// without an explicit primary key; its length equals the number of
	// such documents, not the total insert count.
	GeneratedKeys []string `json:"generated_keys,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	// Changes is populated when the write ran with return_changes.
	Changes []ValueChange `json:"changes,omitempty"`
}

func (w Write) InsertedN() int64  { return deref(w.Inserted) }
func (w Write) ReplacedN() int64  { return deref(w.Replaced) }
func (w Write) UnchangedN() int64 { return deref(w.Unchanged) }
func (w Write) DeletedN() int64   { return deref(w.Deleted) }
func (w Write) SkippedN() int64   { return deref(w.Skipped) }
func (w Write) ErrorsN() int64    { return deref(w.Errors) }

// IndexChange summarizes index DDL.
type IndexChange struct {
	Created *int64 `json:"created,omitempty"`
	Renamed *int64 `json:"renamed,omitempty"`
	Dropped *int64 `json:"dropped,omitempty"`
}

// TableChange summarizes table DDL.
type TableChange struct {
	TablesCreated *int64 `json:"tables_created,omitempty"`
	TablesDropped *int64 `json:"tables_dropped,omitempty"`
}

// DatabaseChange summarizes database DDL.
type DatabaseChange struct {
	DBsCreated    *int64 `json:"dbs_created,omitempty"`
	DBsDropped    *int64 `json:"dbs_dropped,omitempty"`
	TablesDropped *int64 `json:"tables_dropped,omitempty"`
}

// ParseWrite normalizes a raw write outcome into a Write.
func ParseWrite(raw json.RawMessage) (Write, error) {
	var w Write
	if err := json.Unmarshal(raw, &w); err != nil {
		return Write{}, fmt.Errorf("result: parse write: %w", err)
	}
	if w.ErrorsN() == 0 {
		// first_error is defined only alongside a positive error count
		w.FirstError = ""
	}
	return w, nil
}

// ParseIndexChange normalizes a raw index DDL outcome.
func ParseIndexChange(raw json.RawMessage) (IndexChange, error) {
	var c IndexChange
	if err := json.Unmarshal(raw, &c); err != nil {
		return IndexChange{}, fmt.Errorf("result: parse index change: %w", err)
	}
	return c, nil
}

// ParseTableChange normalizes a raw table DDL outcome.
func ParseTableChange(raw json.RawMessage) (TableChange, error) {
	var c TableChange
	if err := json.Unmarshal(raw, &c); err != nil {
		return TableChange{}, fmt.Errorf("result: parse table change: %w", err)
	}
	return c, nil
}

// ParseDatabaseChange normalizes a raw database DDL outcome.
func ParseDatabaseChange(raw json.RawMessage) (DatabaseChange, error) {
	var c DatabaseChange
	if err := json.Unmarshal(raw, &c); err != nil {
		return DatabaseChange{}, fmt.Errorf("result: parse database change: %w", err)
	}
	return c, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// Int64 returns a pointer to n, for building expected results in tests and
// adapters.
func Int64(n int64) *int64 { return &n }
