package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage secondary indexes",
	}
	cmd.AddCommand(newIndexCreateCmd(cfg))
	cmd.AddCommand(newIndexDropCmd(cfg))
	cmd.AddCommand(newIndexListCmd(cfg))
	cmd.AddCommand(newIndexWaitCmd(cfg))
	return cmd
}

func newIndexCreateCmd(cfg *rootConfig) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "create <db.table> <name>",
		Short: "Create a secondary index on a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, cfg, args[0], func(rc *runCtx) error {
				if _, err := rc.runner.Run(rc.ctx, rc.tbl.IndexCreate(args[1])); err != nil {
					return err
				}
				if wait {
					if _, err := rc.runner.Run(rc.ctx, rc.tbl.IndexWait(args[1])); err != nil {
						return err
					}
				}
				return printJSON(cmd, map[string]interface{}{"created": 1, "ready": wait})
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the index to become ready")
	return cmd
}

func newIndexDropCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <db.table> <name>",
		Short: "Drop a secondary index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, cfg, args[0], func(rc *runCtx) error {
				cur, err := rc.runner.Run(rc.ctx, rc.tbl.IndexDrop(args[1]))
				if err != nil {
					return err
				}
				defer func() { _ = cur.Close() }()
				return printRows(cur, cmd.OutOrStdout())
			})
		},
	}
}

func newIndexListCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list <db.table>",
		Short: "List a table's secondary indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, cfg, args[0], func(rc *runCtx) error {
				cur, err := rc.runner.Run(rc.ctx, rc.tbl.IndexList())
				if err != nil {
					return err
				}
				defer func() { _ = cur.Close() }()
				return printRows(cur, cmd.OutOrStdout())
			})
		},
	}
}

func newIndexWaitCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "wait <db.table> [name...]",
		Short: "Wait until indexes are ready for querying",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, cfg, args[0], func(rc *runCtx) error {
				cur, err := rc.runner.Run(rc.ctx, rc.tbl.IndexWait(args[1:]...))
				if err != nil {
					return err
				}
				defer func() { _ = cur.Close() }()
				return printRows(cur, cmd.OutOrStdout())
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return err
}
