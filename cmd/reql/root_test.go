package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reqlcore/engine"
	"reqlcore/reql"
)

func TestSubcommandsRegistered(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	want := map[string]bool{"insert": false, "get": false, "filter": false, "index": false, "watch": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not registered on root command", name)
		}
	}
}

func TestParseTableRef(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		db      string
		table   string
		wantErr bool
	}{
		{"app.users", "app", "users", false},
		{"test.orders", "test", "orders", false},
		{"db.table.extra", "db", "table.extra", false}, // dots after first belong to the table name
		{"notadottedref", "", "", true},
		{".users", "", "", true},
		{"app.", "", "", true},
		{".", "", "", true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			db, table, err := parseTableRef(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("parseTableRef(%q): expected error, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTableRef(%q): unexpected error: %v", tc.input, err)
			}
			if db != tc.db {
				t.Errorf("db: got %q, want %q", db, tc.db)
			}
			if table != tc.table {
				t.Errorf("table: got %q, want %q", table, tc.table)
			}
		})
	}
}

func TestKeyArg(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  interface{}
	}{
		{"alice", "alice"},
		{`"alice"`, "alice"},
		{"42", float64(42)},
		{"true", true},
		{`[1,2]`, []interface{}{float64(1), float64(2)}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got := keyArg(tc.input)
			gj, _ := json.Marshal(got)
			wj, _ := json.Marshal(tc.want)
			if string(gj) != string(wj) {
				t.Errorf("keyArg(%q): got %s, want %s", tc.input, gj, wj)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"validation", &reql.ValidationError{Op: "get", Reason: "bad"}, exitQuery},
		{"execution", &engine.ExecutionError{Adapter: "memdb", Cause: errors.New("boom")}, exitQuery},
		{"setup", errors.New("no such file"), exitSetup},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReadDocs(t *testing.T) {
	t.Parallel()
	in := strings.NewReader(`{"id":"a"}` + "\n" + `{"id":"b","n":2}` + "\n")
	docs, err := readDocs(in)
	if err != nil {
		t.Fatalf("readDocs: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("readDocs: got %d docs, want 2", len(docs))
	}

	if _, err := readDocs(strings.NewReader("not json\n")); err == nil {
		t.Error("readDocs: expected error for malformed line, got nil")
	}
}

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{"app":{"users":[
		{"id":"alice","age":31,"status":"active"},
		{"id":"bob","age":25,"status":"inactive"}
	]}}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGetCommandSeeded(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "--seed", writeSeed(t), "get", "app.users", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, out)
	}
	if doc["id"] != "alice" {
		t.Errorf("get: got %v, want alice", doc["id"])
	}
}

func TestGetCommandFields(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "--seed", writeSeed(t), "get", "app.users", "alice", "--fields", "id,age")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, out)
	}
	if _, ok := doc["status"]; ok {
		t.Error("get --fields: status should have been excluded")
	}
}

func TestFilterCommandOrdered(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "--seed", writeSeed(t), "filter", "app.users", "--order-by", "age", "--desc")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("filter: got %d rows, want 2\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], `"alice"`) {
		t.Errorf("filter: expected alice first in descending age order, got %s", lines[0])
	}
}

func TestFilterCommandPattern(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "--seed", writeSeed(t), "filter", "app.users", `{"status":"active"}`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"alice"`) {
		t.Errorf("filter: expected only alice, got %s", out)
	}
}

func TestInsertCommandRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs.jsonl")
	if err := os.WriteFile(docs, []byte(`{"id":"x","n":1}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "insert", "fresh.items", "--file", docs)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	var w map[string]interface{}
	if err := json.Unmarshal([]byte(out), &w); err != nil {
		t.Fatalf("insert output is not JSON: %v\n%s", err, out)
	}
	if w["inserted"] != float64(1) {
		t.Errorf("insert: got summary %s", out)
	}
}

func TestBadSeedFileFails(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "--seed", "/does/not/exist.json", "get", "app.users", "alice")
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
	if exitCode(err) != exitSetup {
		t.Errorf("missing seed file should be a setup error, got code %d", exitCode(err))
	}
}
