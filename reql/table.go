package reql

// Database scopes table access and table DDL to one database.
type Database struct{ Term }

// DB references a database by name.
func DB(name string) Database {
	if name == "" {
		return Database{validationErr("db", "database name must not be empty")}
	}
	return Database{newTerm(KindDB, []Term{datum(name)}, nil)}
}

// Table references a table in the database.
func (d Database) Table(name string) Table {
	if name == "" {
		return Table{Selection{Stream{validationErr("table", "table name must not be empty")}}}
	}
	return Table{Selection{Stream{newTerm(KindTable, []Term{d.Term, datum(name)}, nil)}}}
}

// TableCreate creates a table; the result maps to a TableChange.
func (d Database) TableCreate(name string, opts ...OptArgs) Datum {
	if name == "" {
		return Datum{validationErr("table_create", "table name must not be empty")}
	}
	return Datum{newTerm(KindTableCreate, []Term{d.Term, datum(name)}, mergeOpts(opts))}
}

// TableDrop drops a table; the result maps to a TableChange.
func (d Database) TableDrop(name string) Datum {
	return Datum{newTerm(KindTableDrop, []Term{d.Term, datum(name)}, nil)}
}

// TableList lists the database's tables.
func (d Database) TableList() Datum {
	return Datum{newTerm(KindTableList, []Term{d.Term}, nil)}
}

// DBCreate creates a database; the result maps to a DatabaseChange.
func DBCreate(name string) Datum {
	if name == "" {
		return Datum{validationErr("db_create", "database name must not be empty")}
	}
	return Datum{newTerm(KindDBCreate, []Term{datum(name)}, nil)}
}

// DBDrop drops a database; the result maps to a DatabaseChange.
func DBDrop(name string) Datum {
	return Datum{newTerm(KindDBDrop, []Term{datum(name)}, nil)}
}

// DBList lists databases.
func DBList() Datum { return Datum{newTerm(KindDBList, nil, nil)} }

// Table is a whole-table selection: everything a Selection can do, plus
// inserts, point and index reads, and index management.
type Table struct{ Selection }

// Get selects the document with the given primary key.
func (t Table) Get(key interface{}) SingleSelection {
	return SingleSelection{Datum{op(KindGet, t.Term, key)}}
}

// GetAll selects the documents matching any of the keys on the primary key
// or, with OptArgs{"index": name}, on a secondary index.
func (t Table) GetAll(keys ...interface{}) Selection {
	args := []Term{t.Term}
	var opts []OptArgs
	for _, k := range keys {
		if o, ok := k.(OptArgs); ok {
			opts = append(opts, o)
			continue
		}
		args = append(args, expr(k))
	}
	o := mergeOpts(opts)
	for k, v := range o {
		if k != optIndex {
			return Selection{Stream{validationErr("get_all", "unknown option %q", k)}}
		}
		if _, ok := v.(string); !ok {
			return Selection{Stream{validationErr("get_all", "index must be a string, got %T", v)}}
		}
	}
	if len(args) == 1 {
		return Selection{Stream{validationErr("get_all", "at least one key is required")}}
	}
	return Selection{Stream{newTerm(KindGetAll, args, o)}}
}

// Between selects documents whose index value lies in the half-open range
// [low, high). Omitting OptArgs{"index": name} means the primary key.
func (t Table) Between(low, high interface{}, opts ...OptArgs) Selection {
	o := mergeOpts(opts)
	for k, v := range o {
		if k != optIndex {
			return Selection{Stream{validationErr("between", "unknown option %q", k)}}
		}
		if _, ok := v.(string); !ok {
			return Selection{Stream{validationErr("between", "index must be a string, got %T", v)}}
		}
	}
	return Selection{Stream{newTerm(KindBetween, []Term{t.Term, expr(low), expr(high)}, o)}}
}

// Insert adds one document or an array of documents. Options: conflict
// (error, replace, update; error is the default and reports duplicate keys
// through the Write result, not a thrown failure), return_changes.
func (t Table) Insert(docs interface{}, opts ...OptArgs) Datum {
	o := mergeOpts(opts)
	if err := checkInsertOpts(o); err != nil {
		return Datum{invalidTerm(err)}
	}
	return Datum{newTerm(KindInsert, []Term{t.Term, expr(docs)}, o)}
}

// IndexCreate creates a secondary index on a top-level field of the same
// name. The index is not usable by GetAll/Between until IndexWait resolves
// for it; adapters define what querying an unready index does.
func (t Table) IndexCreate(name string) Datum {
	if name == "" {
		return Datum{validationErr("index_create", "index name must not be empty")}
	}
	return Datum{newTerm(KindIndexCreate, []Term{t.Term, datum(name)}, nil)}
}

// IndexCreateFunc creates a secondary index computed by fn from each row.
func (t Table) IndexCreateFunc(name string, fn func(ObjectTerm) interface{}) Datum {
	if name == "" {
		return Datum{validationErr("index_create", "index name must not be empty")}
	}
	f := funcOf(1, func(args []AnyTerm) interface{} { return fn(ObjectTerm{args[0].Term}) })
	return Datum{newTerm(KindIndexCreate, []Term{t.Term, datum(name), f}, nil)}
}

// IndexDrop removes a secondary index; the result maps to an IndexChange.
func (t Table) IndexDrop(name string) Datum {
	return Datum{newTerm(KindIndexDrop, []Term{t.Term, datum(name)}, nil)}
}

// IndexList lists the table's secondary indexes.
func (t Table) IndexList() Datum {
	return Datum{newTerm(KindIndexList, []Term{t.Term}, nil)}
}

// IndexWait blocks until the named indexes (all of them when none are
// named) are ready for use.
func (t Table) IndexWait(names ...string) Datum {
	args := []Term{t.Term}
	for _, n := range names {
		args = append(args, datum(n))
	}
	return Datum{newTerm(KindIndexWait, args, nil)}
}
