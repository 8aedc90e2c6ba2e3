package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rlmlabs/rlm/internal/policy"
)

func sampleRecords() []Record {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []Record{
		{ID: "a", Time: base, Component: ComponentPrePush, Outcome: policy.Allowed, Subject: "refs/heads/feature", Actor: "unknown"},
		{ID: "b", Time: base.Add(time.Second), Component: ComponentPreToolUse, Outcome: policy.Blocked, Subject: "rm -rf /", Actor: "privileged", Reason: "dangerous", Pattern: "rm -rf /"},
		{ID: "c", Time: base.Add(2 * time.Second), Component: ComponentPrePush, Outcome: policy.Blocked, Subject: "main", Actor: "DevOps", Reason: "not authorized"},
	}
}

// exerciseStorage runs the behaviour every backend must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	empty, err := s.List(0)
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("empty store returned %d records", len(empty))
	}

	for _, rec := range sampleRecords() {
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append(%s): %v", rec.ID, err)
		}
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(List(0)) = %d, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want newest first", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[1].Outcome != policy.Blocked || all[1].Pattern != "rm -rf /" || all[1].Reason != "dangerous" {
		t.Errorf("round-tripped record = %+v", all[1])
	}
	if !all[2].Time.Equal(sampleRecords()[0].Time) {
		t.Errorf("Time = %v, want %v", all[2].Time, sampleRecords()[0].Time)
	}

	two, err := s.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(two) != 2 || two[0].ID != "c" {
		t.Errorf("List(2) = %+v", two)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	s := NewFileStorage(path)
	defer s.Close()

	exerciseStorage(t, s)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileStorage_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s := NewFileStorage(path)

	if err := s.Append(sampleRecords()[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	got, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	exerciseStorage(t, s)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		path    string
		wantErr error
		want    string
	}{
		{"", "", nil, "storage.NopStorage"},
		{BackendNone, "", nil, "storage.NopStorage"},
		{BackendJSONL, filepath.Join(dir, "a.jsonl"), nil, "*storage.FileStorage"},
		{BackendSQLite, filepath.Join(dir, "a.db"), nil, "*storage.SQLiteStorage"},
		{BackendJSONL, "", ErrPathRequired, ""},
		{BackendSQLite, "", ErrPathRequired, ""},
		{"postgres", "x", ErrUnknownBackend, ""},
	}

	for _, tt := range tests {
		s, err := Open(tt.backend, tt.path)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open(%q) err = %v, want %v", tt.backend, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Open(%q): %v", tt.backend, err)
			continue
		}
		if got := typeName(s); got != tt.want {
			t.Errorf("Open(%q) = %s, want %s", tt.backend, got, tt.want)
		}
		s.Close()
	}
}

func typeName(s Storage) string {
	switch s.(type) {
	case NopStorage:
		return "storage.NopStorage"
	case *FileStorage:
		return "*storage.FileStorage"
	case *SQLiteStorage:
		return "*storage.SQLiteStorage"
	default:
		return "?"
	}
}

func TestNopStorage(t *testing.T) {
	var s NopStorage
	if err := s.Append(sampleRecords()[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.List(0)
	if err != nil || len(got) != 0 {
		t.Fatalf("List = %v, %v", got, err)
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(ComponentPreToolUse, "git push origin main", "standard", policy.Deny("nope", "git push origin main"))
	if rec.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if rec.Outcome != policy.Blocked || rec.Pattern != "git push origin main" || rec.Reason != "nope" {
		t.Errorf("NewRecord = %+v", rec)
	}
	if rec.Time.Location() != time.UTC {
		t.Errorf("Time location = %v, want UTC", rec.Time.Location())
	}

	other := NewRecord(ComponentPreToolUse, "x", "standard", policy.Allow(""))
	if other.ID == rec.ID {
		t.Error("record IDs should be unique")
	}
}

func TestDefaultPath(t *testing.T) {
	if got := DefaultPath(BackendJSONL, "/tmp/x"); got != filepath.Join("/tmp/x", "audit.jsonl") {
		t.Errorf("DefaultPath(jsonl) = %q", got)
	}
	if got := DefaultPath(BackendSQLite, "/tmp/x"); got != filepath.Join("/tmp/x", "audit.db") {
		t.Errorf("DefaultPath(sqlite) = %q", got)
	}
	if got := DefaultPath(BackendNone, "/tmp/x"); got != "" {
		t.Errorf("DefaultPath(none) = %q, want empty", got)
	}
}
