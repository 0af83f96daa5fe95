package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangeType classifies a ValueChange by which of its fields are present.
type ChangeType int

const (
	ChangeInsert ChangeType = iota + 1
	ChangeDelete
	ChangeUpdate
	ChangeError
)

func (t ChangeType) String() string {
	switch t {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeUpdate:
		return "update"
	case ChangeError:
		return "error"
	default:
		return fmt.Sprintf("change(%d)", int(t))
	}
}

// ValueChange describes a document's state before and after a change.
// Exactly one of four states holds: insert (old absent, new present),
// delete (old present, new absent), update (both present), or error.
type ValueChange struct {
	OldVal json.RawMessage `json:"old_val,omitempty"`
	NewVal json.RawMessage `json:"new_val,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Type reports which state the change is in.
func (c ValueChange) Type() ChangeType {
	switch {
	case c.Err != "":
		return ChangeError
	case c.OldVal == nil && c.NewVal != nil:
		return ChangeInsert
	case c.OldVal != nil && c.NewVal == nil:
		return ChangeDelete
	default:
		return ChangeUpdate
	}
}

// RawChange is a change event as reported by a backend adapter, before
// normalization. Key is the canonical encoding of the changed document's
// primary key; the feed subsystem uses it to squash changes per document.
type RawChange struct {
	Key    string
	OldVal json.RawMessage
	NewVal json.RawMessage
	Err    string
	Fatal  bool
}

// MapChange normalizes a raw adapter change into a ValueChange. JSON null
// values are treated as absent.
func MapChange(rc RawChange) ValueChange {
	return ValueChange{
		OldVal: nullToAbsent(rc.OldVal),
		NewVal: nullToAbsent(rc.NewVal),
		Err:    rc.Err,
	}
}

func nullToAbsent(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
