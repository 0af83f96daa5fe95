package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"reqlcore/feed"
)

// Cursor iterates over query results. Exhaustion is reported as io.EOF.
type Cursor interface {
	Next() (json.RawMessage, error)
	All() ([]json.RawMessage, error)
	Close() error
}

// atomCursor yields a single value.
type atomCursor struct {
	item json.RawMessage
	done bool
}

func newAtom(item json.RawMessage) Cursor { return &atomCursor{item: item} }

func (c *atomCursor) Next() (json.RawMessage, error) {
	if c.done {
		return nil, io.EOF
	}
	c.done = true
	return c.item, nil
}

func (c *atomCursor) All() ([]json.RawMessage, error) {
	c.done = true
	return []json.RawMessage{c.item}, nil
}

func (c *atomCursor) Close() error { return nil }

// seqCursor iterates a finite sequence.
type seqCursor struct {
	items []json.RawMessage
	pos   int
}

func newSequence(items []json.RawMessage) Cursor { return &seqCursor{items: items} }

func (c *seqCursor) Next() (json.RawMessage, error) {
	if c.pos >= len(c.items) {
		return nil, io.EOF
	}
	item := c.items[c.pos]
	c.pos++
	return item, nil
}

func (c *seqCursor) All() ([]json.RawMessage, error) {
	c.pos = len(c.items)
	return c.items, nil
}

func (c *seqCursor) Close() error { return nil }

// feedCursor presents a changefeed as a cursor of serialized ValueChange
// events. It never reports io.EOF on its own; it ends when the feed closes
// or the run context is done.
type feedCursor struct {
	ctx context.Context
	f   *feed.Feed
}

func (c *feedCursor) Next() (json.RawMessage, error) {
	ev, err := c.f.Next(c.ctx)
	if err != nil {
		if errors.Is(err, feed.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return json.Marshal(ev)
}

// All drains the feed until it closes. Unbounded feeds never close on
// their own, so All is only meaningful after Close or a fatal error.
func (c *feedCursor) All() ([]json.RawMessage, error) {
	var items []json.RawMessage
	for {
		item, err := c.Next()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}

func (c *feedCursor) Close() error { return c.f.Close() }
