package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reqlcore/reql"
)

type insertConfig struct {
	file          string
	conflict      string
	returnChanges bool
}

func newInsertCmd(cfg *rootConfig) *cobra.Command {
	ic := &insertConfig{}
	cmd := &cobra.Command{
		Use:   "insert <db.table>",
		Short: "Insert documents from stdin or a file (one JSON doc per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbName, tableName, err := parseTableRef(args[0])
			if err != nil {
				return err
			}
			src, closer, err := openInputSource(ic.file, os.Stdin)
			if err != nil {
				return err
			}
			defer closer()
			return runInsert(cmd, cfg, ic, dbName, tableName, src)
		},
	}
	cmd.Flags().StringVarP(&ic.file, "file", "F", "", "input file (default: stdin)")
	cmd.Flags().StringVar(&ic.conflict, "conflict", "error", "conflict strategy: error, replace, update")
	cmd.Flags().BoolVar(&ic.returnChanges, "return-changes", false, "include old/new document pairs in the summary")
	return cmd
}

// openInputSource returns a reader for the named file, or stdin if file is empty.
func openInputSource(file string, stdin io.Reader) (io.Reader, func(), error) {
	if file == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// readDocs parses JSONL input into documents.
func readDocs(r io.Reader) ([]interface{}, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	var docs []interface{}
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("parsing input line %d: %w", len(docs)+1, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return docs, nil
}

func runInsert(cmd *cobra.Command, cfg *rootConfig, ic *insertConfig, dbName, tableName string, src io.Reader) error {
	ctx, cancel := runContext(cmd.Context(), cfg)
	defer cancel()

	docs, err := readDocs(src)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents to insert")
	}

	store, runner, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ensureTable(ctx, runner, dbName, tableName)
	opts := reql.OptArgs{"conflict": ic.conflict}
	if ic.returnChanges {
		opts["return_changes"] = true
	}
	w, err := runner.RunWrite(ctx, reql.DB(dbName).Table(tableName).Insert(docs, opts))
	if err != nil {
		return err
	}
	data, _ := json.Marshal(w)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return err
}
