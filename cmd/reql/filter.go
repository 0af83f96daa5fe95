package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"reqlcore/reql"
)

type filterConfig struct {
	orderBy string
	desc    bool
	limit   int
	between []string
	index   string
}

func newFilterCmd(cfg *rootConfig) *cobra.Command {
	fc := &filterConfig{}
	cmd := &cobra.Command{
		Use:   "filter <db.table> [pattern]",
		Short: "Select documents matching a JSON pattern",
		Long: `Select documents matching a JSON pattern of field equalities, e.g.
'{"status": "active"}'. With no pattern the whole table is selected.`,
		Args: cobra.RangeArgs(1, 2),
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

			tbl := reql.DB(dbName).Table(tableName)
			sel := tbl.Selection
			if len(fc.between) > 0 {
				if len(fc.between) != 2 {
					return fmt.Errorf("--between needs exactly two bounds")
				}
				var opts []reql.OptArgs
				if fc.index != "" {
					opts = append(opts, reql.OptArgs{"index": fc.index})
				}
				sel = tbl.Between(keyArg(fc.between[0]), keyArg(fc.between[1]), opts...)
			}

			stream := sel.Stream
			if len(args) == 2 {
				var pattern map[string]interface{}
				if err := json.Unmarshal([]byte(args[1]), &pattern); err != nil {
					return fmt.Errorf("parsing pattern: %w", err)
				}
				stream = sel.Filter(pattern).Stream
			}
			if fc.orderBy != "" {
				key := interface{}(fc.orderBy)
				if fc.desc {
					key = reql.Desc(fc.orderBy)
				}
				stream = stream.OrderBy(key)
			}
			if fc.limit > 0 {
				stream = stream.Limit(fc.limit)
			}

			cur, err := runner.Run(ctx, stream)
			if err != nil {
				return err
			}
			defer func() { _ = cur.Close() }()
			return printRows(cur, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&fc.orderBy, "order-by", "", "sort by this field")
	cmd.Flags().BoolVar(&fc.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&fc.limit, "limit", 0, "return at most this many documents")
	cmd.Flags().StringSliceVar(&fc.between, "between", nil, "restrict to the key range [low,high)")
	cmd.Flags().StringVar(&fc.index, "index", "", "secondary index for --between")
	return cmd
}
