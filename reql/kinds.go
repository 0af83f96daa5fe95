package reql

import "fmt"

// Kind identifies a term in a serialized query. The numbering follows the
// ReQL wire protocol so adapters for wire-compatible backends can pass the
// values through unchanged.
type Kind int

const (
	// base / special
	KindDatum       Kind = 1
	KindMakeArray   Kind = 2
	KindMakeObj     Kind = 3
	KindVar         Kind = 10
	KindImplicitVar Kind = 13

	// database / table DDL
	KindDB          Kind = 14
	KindTable       Kind = 15
	KindDBCreate    Kind = 57
	KindDBDrop      Kind = 58
	KindDBList      Kind = 59
	KindTableCreate Kind = 60
	KindTableDrop   Kind = 61
	KindTableList   Kind = 62

	// index DDL
	KindIndexCreate Kind = 75
	KindIndexDrop   Kind = 76
	KindIndexList   Kind = 77
	KindIndexWait   Kind = 140

	// row read
	KindGet    Kind = 16
	KindGetAll Kind = 78

	// comparison operators
	KindEq  Kind = 17
	KindNe  Kind = 18
	KindLt  Kind = 19
	KindLe  Kind = 20
	KindGt  Kind = 21
	KindGe  Kind = 22
	KindNot Kind = 23

	// math operators
	KindAdd Kind = 24
	KindSub Kind = 25
	KindMul Kind = 26
	KindDiv Kind = 27
	KindMod Kind = 28

	// sequence / array operators
	KindAppend   Kind = 29
	KindPrepend  Kind = 80
	KindSlice    Kind = 30
	KindSkip     Kind = 70
	KindLimit    Kind = 71
	KindContains Kind = 93
	KindNth      Kind = 45
	KindBracket  Kind = 170
	KindEqJoin   Kind = 50
	KindZip      Kind = 72
	KindUnion    Kind = 44
	KindIsEmpty  Kind = 86
	KindDistinct Kind = 42
	KindCount    Kind = 43
	KindGroup    Kind = 144
	KindUngroup  Kind = 150
	KindSum      Kind = 145
	KindAvg      Kind = 146
	KindMin      Kind = 147
	KindMax      Kind = 148

	// document operators
	KindGetField  Kind = 31
	KindKeys      Kind = 94
	KindValues    Kind = 186
	KindHasFields Kind = 32
	KindPluck     Kind = 33
	KindWithout   Kind = 34
	KindMerge     Kind = 35

	// query operators
	KindBetween Kind = 36
	KindFilter  Kind = 39
	KindMap     Kind = 38
	KindOrderBy Kind = 41
	KindChanges Kind = 152

	// write operators
	KindUpdate  Kind = 53
	KindDelete  Kind = 54
	KindReplace Kind = 55
	KindInsert  Kind = 56

	// control flow
	KindFuncCall Kind = 64
	KindOr       Kind = 66
	KindAnd      Kind = 67
	KindFunc     Kind = 69
	KindAsc      Kind = 73
	KindDesc     Kind = 74
	KindDefault  Kind = 92

	// string operators
	KindMatch    Kind = 97
	KindUpcase   Kind = 141
	KindDowncase Kind = 142
	KindSplit    Kind = 149

	// time operators
	KindISO8601     Kind = 99
	KindEpochTime   Kind = 101
	KindToEpochTime Kind = 102
	KindNow         Kind = 103
	KindInTimezone  Kind = 104
	KindDuring      Kind = 105
	KindDate        Kind = 106
	KindYear        Kind = 128
	KindMonth       Kind = 129
	KindDay         Kind = 130
	KindHours       Kind = 133
	KindMinutes     Kind = 134
	KindSeconds     Kind = 135
)

var kindNames = map[Kind]string{
	KindDatum:       "datum",
	KindMakeArray:   "make_array",
	KindMakeObj:     "make_obj",
	KindVar:         "var",
	KindImplicitVar: "implicit_var",
	KindDB:          "db",
	KindTable:       "table",
	KindDBCreate:    "db_create",
	KindDBDrop:      "db_drop",
	KindDBList:      "db_list",
	KindTableCreate: "table_create",
	KindTableDrop:   "table_drop",
	KindTableList:   "table_list",
	KindIndexCreate: "index_create",
	KindIndexDrop:   "index_drop",
	KindIndexList:   "index_list",
	KindIndexWait:   "index_wait",
	KindGet:         "get",
	KindGetAll:      "get_all",
	KindEq:          "eq",
	KindNe:          "ne",
	KindLt:          "lt",
	KindLe:          "le",
	KindGt:          "gt",
	KindGe:          "ge",
	KindNot:         "not",
	KindAdd:         "add",
	KindSub:         "sub",
	KindMul:         "mul",
	KindDiv:         "div",
	KindMod:         "mod",
	KindAppend:      "append",
	KindPrepend:     "prepend",
	KindSlice:       "slice",
	KindSkip:        "skip",
	KindLimit:       "limit",
	KindContains:    "contains",
	KindNth:         "nth",
	KindBracket:     "bracket",
	KindEqJoin:      "eq_join",
	KindZip:         "zip",
	KindUnion:       "union",
	KindIsEmpty:     "is_empty",
	KindDistinct:    "distinct",
	KindCount:       "count",
	KindGroup:       "group",
	KindUngroup:     "ungroup",
	KindSum:         "sum",
	KindAvg:         "avg",
	KindMin:         "min",
	KindMax:         "max",
	KindGetField:    "get_field",
	KindKeys:        "keys",
	KindValues:      "values",
	KindHasFields:   "has_fields",
	KindPluck:       "pluck",
	KindWithout:     "without",
	KindMerge:       "merge",
	KindBetween:     "between",
	KindFilter:      "filter",
	KindMap:         "map",
	KindOrderBy:     "order_by",
	KindChanges:     "changes",
	KindUpdate:      "update",
	KindDelete:      "delete",
	KindReplace:     "replace",
	KindInsert:      "insert",
	KindFuncCall:    "funcall",
	KindOr:          "or",
	KindAnd:         "and",
	KindFunc:        "func",
	KindAsc:         "asc",
	KindDesc:        "desc",
	KindDefault:     "default",
	KindMatch:       "match",
	KindUpcase:      "upcase",
	KindDowncase:    "downcase",
	KindSplit:       "split",
	KindISO8601:     "iso8601",
	KindEpochTime:   "epoch_time",
	KindToEpochTime: "to_epoch_time",
	KindNow:         "now",
	KindInTimezone:  "in_timezone",
	KindDuring:      "during",
	KindDate:        "date",
	KindYear:        "year",
	KindMonth:       "month",
	KindDay:         "day",
	KindHours:       "hours",
	KindMinutes:     "minutes",
	KindSeconds:     "seconds",
}

// String returns the lower-case protocol name of the kind, used in error
// messages and adapter diagnostics.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}
