package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"reqlcore/reql"
)

func newGetCmd(cfg *rootConfig) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "get <db.table> <key>",
		Short: "Fetch one document by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbName, tableName, err := parseTableRef(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := runContext(cmd.Context(), cfg)
			defer cancel()

			store, runner, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var q reql.Query = reql.DB(dbName).Table(tableName).Get(keyArg(args[1]))
			if len(fields) > 0 {
				sels := make([]interface{}, len(fields))
				for i, f := range fields {
					sels[i] = f
				}
				q = reql.DB(dbName).Table(tableName).Get(keyArg(args[1])).Pluck(sels...)
			}
			cur, err := runner.Run(ctx, q)
			if err != nil {
				return err
			}
			defer func() { _ = cur.Close() }()
			return printRows(cur, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "return only these fields")
	return cmd
}

// keyArg interprets the key argument: valid JSON is used as-is, anything
// else is a plain string key.
func keyArg(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
