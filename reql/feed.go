package reql

// Feed is an unbounded stream of change events. It carries the stream
// transformation capabilities, while writes are intentionally absent and
// nesting changefeeds is rejected at build time.
type Feed struct{ Stream }

// Changes on a feed is a capability mismatch: a changefeed cannot observe
// itself.
func (f Feed) Changes(opts ...OptArgs) Feed {
	return Feed{Stream{validationErr("changes", "cannot open a changefeed on a changefeed")}}
}
