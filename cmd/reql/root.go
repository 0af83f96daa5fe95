package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reqlcore/engine"
	"reqlcore/internal/memdb"
	"reqlcore/reql"
)

// exit codes
const (
	exitOK    = 0
	exitSetup = 1
	exitQuery = 2
	exitINT   = 130
)

type rootConfig struct {
	seed    string
	fanout  int
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	cfg := &rootConfig{}
	return buildRootCmd(cfg)
}

func buildRootCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reql",
		Short:         "Run queries against an in-memory document store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.AddCommand(newInsertCmd(cfg))
	cmd.AddCommand(newGetCmd(cfg))
	cmd.AddCommand(newFilterCmd(cfg))
	cmd.AddCommand(newIndexCmd(cfg))
	cmd.AddCommand(newWatchCmd(cfg))

	f := cmd.PersistentFlags()
	f.StringVarP(&cfg.seed, "seed", "s", "", "seed data file: {\"db\": {\"table\": [docs...]}}")
	f.IntVar(&cfg.fanout, "fanout", 0, "changefeed fan-out workers (0 = default)")
	f.DurationVarP(&cfg.timeout, "timeout", "t", 30*time.Second, "query timeout (0 = none)")
	return cmd
}

// exitCode maps an error to the appropriate process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if isQueryError(err) {
		return exitQuery
	}
	return exitSetup
}

func isQueryError(err error) bool {
	var v *reql.ValidationError
	var m *reql.TypeMismatchError
	var x *engine.ExecutionError
	var u *engine.UnsupportedOperationError
	return errors.As(err, &v) || errors.As(err, &m) || errors.As(err, &x) || errors.As(err, &u)
}

// parseTableRef splits "db.table" into db and table names.
func parseTableRef(ref string) (db, table string, err error) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid table reference %q: expected db.table", ref)
	}
	return parts[0], parts[1], nil
}

// openStore builds the in-memory store, applies the seed file, and wraps it
// in a runner.
func openStore(ctx context.Context, cfg *rootConfig) (*memdb.Store, *engine.Runner, error) {
	store, err := memdb.New(cfg.fanout)
	if err != nil {
		return nil, nil, err
	}
	runner := engine.New(store)
	if cfg.seed != "" {
		if err := applySeed(ctx, runner, cfg.seed); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return store, runner, nil
}

// applySeed creates every database and table in the seed file and loads
// their documents.
func applySeed(ctx context.Context, runner *engine.Runner, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed map[string]map[string][]interface{}
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}
	for dbName, tables := range seed {
		if _, err := runner.Run(ctx, reql.DBCreate(dbName)); err != nil {
			return err
		}
		db := reql.DB(dbName)
		for tblName, docs := range tables {
			if _, err := runner.Run(ctx, db.TableCreate(tblName)); err != nil {
				return err
			}
			if len(docs) == 0 {
				continue
			}
			w, err := runner.RunWrite(ctx, db.Table(tblName).Insert(docs))
			if err != nil {
				return err
			}
			if w.ErrorsN() > 0 {
				return fmt.Errorf("seeding %s.%s: %s", dbName, tblName, w.FirstError)
			}
		}
	}
	return nil
}

// runContext applies the configured timeout to the command context.
func runContext(ctx context.Context, cfg *rootConfig) (context.Context, context.CancelFunc) {
	if cfg.timeout > 0 {
		return context.WithTimeout(ctx, cfg.timeout)
	}
	return context.WithCancel(ctx)
}

// runCtx bundles what a table-scoped command needs.
type runCtx struct {
	ctx    context.Context
	runner *engine.Runner
	tbl    reql.Table
}

// withTable opens the store, resolves the db.table argument and runs fn.
func withTable(cmd *cobra.Command, cfg *rootConfig, ref string, fn func(*runCtx) error) error {
	dbName, tableName, err := parseTableRef(ref)
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
	return fn(&runCtx{ctx: ctx, runner: runner, tbl: reql.DB(dbName).Table(tableName)})
}

// ensureTable creates the database and table when the seed file did not,
// so ad-hoc inserts work against an empty store.
func ensureTable(ctx context.Context, runner *engine.Runner, dbName, tableName string) {
	_, _ = runner.Run(ctx, reql.DBCreate(dbName))
	_, _ = runner.Run(ctx, reql.DB(dbName).TableCreate(tableName))
}

// printRows writes cursor results as JSON lines.
func printRows(cur engine.Cursor, out io.Writer) error {
	rows, err := cur.All()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(out, "%s\n", row); err != nil {
			return err
		}
	}
	return nil
}
