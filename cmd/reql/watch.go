package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reqlcore/feed"
	"reqlcore/reql"
)

type watchConfig struct {
	key            string
	pattern        string
	squash         float64
	queueSize      int
	includeInitial bool
	limit          int
}

func newWatchCmd(cfg *rootConfig) *cobra.Command {
	wc := &watchConfig{}
	cmd := &cobra.Command{
		Use:   "watch <db.table>",
		Short: "Stream change events from a table",
		Long: `Open a changefeed and print one JSON event per line until the event
limit is reached or the process is interrupted. Note that the store is
process-local, so events only come from writes made by the seed file or
concurrently through the same process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, cfg, args[0], func(rc *runCtx) error {
				return runWatch(cmd, wc, rc)
			})
		},
	}
	cmd.Flags().StringVar(&wc.key, "key", "", "watch only the document with this primary key")
	cmd.Flags().StringVar(&wc.pattern, "pattern", "", "watch only documents matching this JSON pattern")
	cmd.Flags().Float64Var(&wc.squash, "squash", 0, "coalesce changes within this many seconds")
	cmd.Flags().IntVar(&wc.queueSize, "queue-size", 0, "buffered event bound (0 = default)")
	cmd.Flags().BoolVar(&wc.includeInitial, "include-initial", false, "emit the current matching set first")
	cmd.Flags().IntVar(&wc.limit, "limit", 0, "stop after this many events (0 = until interrupted)")
	return cmd
}

func runWatch(cmd *cobra.Command, wc *watchConfig, rc *runCtx) error {
	if wc.key != "" && wc.pattern != "" {
		return fmt.Errorf("--key and --pattern are mutually exclusive")
	}
	opts := reql.OptArgs{}
	if wc.squash > 0 {
		opts["squash"] = wc.squash
	}
	if wc.queueSize > 0 {
		opts["changefeed_queue_size"] = wc.queueSize
	}
	if wc.includeInitial {
		opts["include_initial"] = true
	}

	var q reql.Feed
	switch {
	case wc.key != "":
		q = rc.tbl.Get(keyArg(wc.key)).Changes(opts)
	case wc.pattern != "":
		var pattern map[string]interface{}
		if err := json.Unmarshal([]byte(wc.pattern), &pattern); err != nil {
			return fmt.Errorf("parsing pattern: %w", err)
		}
		q = rc.tbl.Filter(pattern).Changes(opts)
	default:
		q = rc.tbl.Changes(opts)
	}

	f, err := rc.runner.RunFeed(rc.ctx, q)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	out := cmd.OutOrStdout()
	for n := 0; wc.limit == 0 || n < wc.limit; n++ {
		ev, err := f.Next(rc.ctx)
		if err != nil {
			if errors.Is(err, feed.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		data, _ := json.Marshal(ev)
		if _, err := fmt.Fprintf(out, "%s\n", data); err != nil {
			return err
		}
	}
	return nil
}
