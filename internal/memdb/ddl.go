package memdb

import (
	"fmt"
	"sort"

	"reqlcore/reql"
)

func (e *evaluator) evalDDL(t reql.Term) (interface{}, error) {
	switch t.Kind() {
	case reql.KindDBCreate:
		name, err := e.str(t.Args()[0], "db_create")
		if err != nil {
			return nil, err
		}
		if _, exists := e.store.dbs[name]; exists {
			return nil, fmt.Errorf("memdb: database %q already exists", name)
		}
		e.store.dbs[name] = &database{tables: make(map[string]*table)}
		return map[string]interface{}{"dbs_created": float64(1)}, nil

	case reql.KindDBDrop:
		name, err := e.str(t.Args()[0], "db_drop")
		if err != nil {
			return nil, err
		}
		db, exists := e.store.dbs[name]
		if !exists {
			return nil, fmt.Errorf("memdb: database %q does not exist", name)
		}
		for _, tbl := range db.tables {
			tbl.closeSubs()
		}
		dropped := float64(len(db.tables))
		delete(e.store.dbs, name)
		return map[string]interface{}{
			"dbs_dropped":    float64(1),
			"tables_dropped": dropped,
		}, nil

	case reql.KindDBList:
		names := make([]interface{}, 0, len(e.store.dbs))
		for name := range e.store.dbs {
			names = append(names, name)
		}
		sortStrings(names)
		return names, nil

	case reql.KindTableCreate:
		dv, err := e.dbArg(t.Args()[0], "table_create")
		if err != nil {
			return nil, err
		}
		if dv.db == nil {
			return nil, fmt.Errorf("memdb: database %q does not exist", dv.name)
		}
		name, err := e.str(t.Args()[1], "table_create")
		if err != nil {
			return nil, err
		}
		if _, exists := dv.db.tables[name]; exists {
			return nil, fmt.Errorf("memdb: table %q already exists in %q", name, dv.name)
		}
		pkey := defaultPrimaryKey
		if v, ok := t.OptArg("primary_key"); ok {
			s, isStr := v.(string)
			if !isStr || s == "" {
				return nil, fmt.Errorf("memdb: primary_key must be a non-empty string")
			}
			pkey = s
		}
		dv.db.tables[name] = &table{
			pkey:    pkey,
			docs:    make(map[string]map[string]interface{}),
			indexes: make(map[string]*index),
			subs:    make(map[int64]*subscriber),
		}
		return map[string]interface{}{"tables_created": float64(1)}, nil

	case reql.KindTableDrop:
		dv, err := e.dbArg(t.Args()[0], "table_drop")
		if err != nil {
			return nil, err
		}
		if dv.db == nil {
			return nil, fmt.Errorf("memdb: database %q does not exist", dv.name)
		}
		name, err := e.str(t.Args()[1], "table_drop")
		if err != nil {
			return nil, err
		}
		tbl, exists := dv.db.tables[name]
		if !exists {
			return nil, fmt.Errorf("memdb: table %q does not exist in %q", name, dv.name)
		}
		tbl.closeSubs()
		delete(dv.db.tables, name)
		return map[string]interface{}{"tables_dropped": float64(1)}, nil

	case reql.KindTableList:
		dv, err := e.dbArg(t.Args()[0], "table_list")
		if err != nil {
			return nil, err
		}
		if dv.db == nil {
			return nil, fmt.Errorf("memdb: database %q does not exist", dv.name)
		}
		names := make([]interface{}, 0, len(dv.db.tables))
		for name := range dv.db.tables {
			names = append(names, name)
		}
		sortStrings(names)
		return names, nil

	case reql.KindIndexCreate:
		tv, err := e.tableArg(t.Args()[0], "index_create")
		if err != nil {
			return nil, err
		}
		name, err := e.str(t.Args()[1], "index_create")
		if err != nil {
			return nil, err
		}
		if _, exists := tv.tbl.indexes[name]; exists {
			return nil, fmt.Errorf("memdb: index %q already exists", name)
		}
		idx := &index{name: name, field: name}
		if len(t.Args()) > 2 {
			idx.fn = t.Args()[2]
		}
		tv.tbl.indexes[name] = idx
		return map[string]interface{}{"created": float64(1)}, nil

	case reql.KindIndexDrop:
		tv, err := e.tableArg(t.Args()[0], "index_drop")
		if err != nil {
			return nil, err
		}
		name, err := e.str(t.Args()[1], "index_drop")
		if err != nil {
			return nil, err
		}
		if _, exists := tv.tbl.indexes[name]; !exists {
			return nil, fmt.Errorf("memdb: index %q does not exist", name)
		}
		delete(tv.tbl.indexes, name)
		return map[string]interface{}{"dropped": float64(1)}, nil

	case reql.KindIndexList:
		tv, err := e.tableArg(t.Args()[0], "index_list")
		if err != nil {
			return nil, err
		}
		names := make([]interface{}, 0, len(tv.tbl.indexes))
		for name := range tv.tbl.indexes {
			names = append(names, name)
		}
		sortStrings(names)
		return names, nil

	default: // index_wait
		tv, err := e.tableArg(t.Args()[0], "index_wait")
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(t.Args())-1)
		for _, a := range t.Args()[1:] {
			n, err := e.str(a, "index_wait")
			if err != nil {
				return nil, err
			}
			names = append(names, n)
		}
		if len(names) == 0 {
			for name := range tv.tbl.indexes {
				names = append(names, name)
			}
			sort.Strings(names)
		}
		out := make([]interface{}, 0, len(names))
		for _, name := range names {
			idx, ok := tv.tbl.indexes[name]
			if !ok {
				return nil, fmt.Errorf("memdb: index %q does not exist", name)
			}
			idx.ready = true
			out = append(out, map[string]interface{}{"index": name, "ready": true})
		}
		return out, nil
	}
}

func sortStrings(vals []interface{}) {
	sort.Slice(vals, func(i, j int) bool {
		return vals[i].(string) < vals[j].(string)
	})
}
