package reql

import "fmt"

// Recognized option names. Keys follow the wire protocol's snake_case.
const (
	optConflict      = "conflict"
	optReturnChanges = "return_changes"
	optSquash        = "squash"
	optQueueSize     = "changefeed_queue_size"
	optIncludeInit   = "include_initial"
	optIndex         = "index"
	optNoIndex       = "no_index"
)

// Conflict resolution modes for insert.
const (
	ConflictError   = "error"
	ConflictReplace = "replace"
	ConflictUpdate  = "update"
)

// mergeOpts folds variadic option bags into one; later bags win.
func mergeOpts(opts []OptArgs) OptArgs {
	if len(opts) == 0 {
		return nil
	}
	if len(opts) == 1 {
		return opts[0]
	}
	merged := make(OptArgs)
	for _, o := range opts {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

// checkInsertOpts validates insert options: conflict mode and return_changes.
func checkInsertOpts(o OptArgs) error {
	for k, v := range o {
		switch k {
		case optConflict:
			s, ok := v.(string)
			if !ok || (s != ConflictError && s != ConflictReplace && s != ConflictUpdate) {
				return &ValidationError{Op: "insert", Reason: fmt.Sprintf("conflict must be %q, %q or %q, got %v", ConflictError, ConflictReplace, ConflictUpdate, v)}
			}
		case optReturnChanges:
			if _, ok := v.(bool); !ok {
				return &ValidationError{Op: "insert", Reason: fmt.Sprintf("return_changes must be a bool, got %T", v)}
			}
		default:
			return &ValidationError{Op: "insert", Reason: fmt.Sprintf("unknown option %q", k)}
		}
	}
	return nil
}

// checkWriteOpts validates update/replace/delete options.
func checkWriteOpts(op string, o OptArgs) error {
	for k, v := range o {
		switch k {
		case optReturnChanges:
			if _, ok := v.(bool); !ok {
				return &ValidationError{Op: op, Reason: fmt.Sprintf("return_changes must be a bool, got %T", v)}
			}
		default:
			return &ValidationError{Op: op, Reason: fmt.Sprintf("unknown option %q", k)}
		}
	}
	return nil
}

// checkChangesOpts validates changefeed options. squash is bool or a
// non-negative number of seconds; changefeed_queue_size is a positive
// integer.
func checkChangesOpts(o OptArgs) error {
	for k, v := range o {
		switch k {
		case optSquash:
			switch n := v.(type) {
			case bool:
			case int:
				if n < 0 {
					return &ValidationError{Op: "changes", Reason: "squash window must not be negative"}
				}
			case float64:
				if n < 0 {
					return &ValidationError{Op: "changes", Reason: "squash window must not be negative"}
				}
			default:
				return &ValidationError{Op: "changes", Reason: fmt.Sprintf("squash must be a bool or number, got %T", v)}
			}
		case optQueueSize:
			n, ok := toInt(v)
			if !ok || n <= 0 {
				return &ValidationError{Op: "changes", Reason: fmt.Sprintf("changefeed_queue_size must be a positive integer, got %v", v)}
			}
		case optIncludeInit:
			if _, ok := v.(bool); !ok {
				return &ValidationError{Op: "changes", Reason: fmt.Sprintf("include_initial must be a bool, got %T", v)}
			}
		default:
			return &ValidationError{Op: "changes", Reason: fmt.Sprintf("unknown option %q", k)}
		}
	}
	return nil
}

// checkOrderByOpts validates orderBy options.
func checkOrderByOpts(o OptArgs) error {
	for k, v := range o {
		switch k {
		case optIndex:
			if _, ok := v.(string); !ok {
				return &ValidationError{Op: "order_by", Reason: fmt.Sprintf("index must be a string, got %T", v)}
			}
		case optNoIndex:
			if _, ok := v.(bool); !ok {
				return &ValidationError{Op: "order_by", Reason: fmt.Sprintf("no_index must be a bool, got %T", v)}
			}
		default:
			return &ValidationError{Op: "order_by", Reason: fmt.Sprintf("unknown option %q", k)}
		}
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Asc marks an orderBy key as ascending (the default).
func Asc(field interface{}) Term { return newTerm(KindAsc, []Term{orderKeyTerm(field)}, nil) }

// Desc marks an orderBy key as descending. Desc reverses the comparator,
// not the final sequence, so secondary tie-break order stays forward.
func Desc(field interface{}) Term { return newTerm(KindDesc, []Term{orderKeyTerm(field)}, nil) }

func orderKeyTerm(field interface{}) Term {
	switch f := field.(type) {
	case string:
		return datum(f)
	case Term:
		return f
	case func(ObjectTerm) AnyTerm:
		return funcOf(1, func(args []AnyTerm) interface{} { return f(ObjectTerm{args[0].Term}) })
	default:
		return validationErr("order_by", "sort key must be a field name, Asc/Desc wrapper or key function, got %T", field)
	}
}
