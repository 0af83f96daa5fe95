package reql

// Field selectors, shared by pluck, without and hasFields:
//
//	"name"                          selects a top-level field
//	[]interface{}{"a", "b"}         selects several fields in order
//	map[string]interface{}{
//	    "a": true,                  true as a leaf includes the field entirely
//	    "b": <nested selector>,     a mapping value selects sub-fields
//	}
//
// Anything else is a build-time validation failure.

// selectorOp validates selectors and builds the operator term.
func selectorOp(kind Kind, recv Term, selectors []interface{}) Term {
	args := make([]Term, 0, len(selectors)+1)
	args = append(args, recv)
	for _, sel := range selectors {
		t, ok := selectorTerm(sel)
		if !ok {
			return validationErr(kind.String(), "invalid field selector %v", sel)
		}
		args = append(args, t)
	}
	return newTerm(kind, args, nil)
}

// selectorTerm converts one selector into its term form.
func selectorTerm(sel interface{}) (Term, bool) {
	switch s := sel.(type) {
	case string:
		return datum(s), true
	case []string:
		args := make([]Term, len(s))
		for i, name := range s {
			args[i] = datum(name)
		}
		return newTerm(KindMakeArray, args, nil), true
	case []interface{}:
		args := make([]Term, len(s))
		for i, item := range s {
			t, ok := selectorTerm(item)
			if !ok {
				return Term{}, false
			}
			args[i] = t
		}
		return newTerm(KindMakeArray, args, nil), true
	case map[string]interface{}:
		obj := make(OptArgs, len(s))
		for k, v := range s {
			if b, isBool := v.(bool); isBool {
				if !b {
					// false leaves are not part of the grammar
					return Term{}, false
				}
				obj[k] = datum(true)
				continue
			}
			t, ok := selectorTerm(v)
			if !ok {
				return Term{}, false
			}
			obj[k] = t
		}
		return newTerm(KindMakeObj, nil, obj), true
	default:
		return Term{}, false
	}
}
