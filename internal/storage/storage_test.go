package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

// backends returns one of each Store implementation against a temp dir.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	fs, err := OpenFile(filepath.Join(dir, "events.jsonl"), filepath.Join(dir, "overrides.json"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	ss, err := OpenSQLite(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		fs.Close()
		ss.Close()
	})

	return map[string]Store{"file": fs, "sqlite": ss}
}

func TestAppendAndReadLines(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := [][]byte{
				[]byte(`{"n":1}`),
				[]byte(`{"n":2}`),
				[]byte(`{"n":3}`),
			}
			for _, line := range want {
				if err := st.AppendLine(line); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			got, err := st.ReadLines()
			if err != nil {
				t.Fatalf("read lines: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d lines, got %d", len(want), len(got))
			}
			for i := range want {
				if !bytes.Equal(got[i], want[i]) {
					t.Errorf("line %d: got %s, want %s", i, got[i], want[i])
				}
			}
		})
	}
}

func TestReadLinesEmpty(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			lines, err := st.ReadLines()
			if err != nil {
				t.Fatalf("read lines: %v", err)
			}
			if len(lines) != 0 {
				t.Fatalf("expected empty log, got %d lines", len(lines))
			}
		})
	}
}

func TestReplaceAndReadDoc(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := st.ReadDoc()
			if err != nil {
				t.Fatalf("read missing doc: %v", err)
			}
			if doc != nil {
				t.Fatalf("expected nil doc before first write, got %s", doc)
			}

			if err := st.ReplaceDoc([]byte(`{"v":1}`)); err != nil {
				t.Fatalf("replace doc: %v", err)
			}
			if err := st.ReplaceDoc([]byte(`{"v":2}`)); err != nil {
				t.Fatalf("replace doc again: %v", err)
			}

			doc, err = st.ReadDoc()
			if err != nil {
				t.Fatalf("read doc: %v", err)
			}
			if string(doc) != `{"v":2}` {
				t.Fatalf("expected latest doc, got %s", doc)
			}
		})
	}
}
