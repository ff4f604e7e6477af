package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"academy/internal/core"
)

func newTestManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "instance", "academy.db")
	if err := os.MkdirAll(filepath.Dir(db), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db, []byte("live"), 0644); err != nil {
		t.Fatal(err)
	}
	m := New(db, filepath.Join(dir, "backups"), retention, nil)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return m, db
}

func TestSanitizeReason(t *testing.T) {
	tests := []struct{ in, want string }{
		{"before deploy", "before_deploy"},
		{"a/b", "a_b"},
		{"<x>", "x"},
		{"   ", "manual"},
		{strings.Repeat("r", 80), strings.Repeat("r", 50)},
	}
	for _, tt := range tests {
		if got := SanitizeReason(tt.in); got != tt.want {
			t.Errorf("SanitizeReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateNamesAndCopiesSiblings(t *testing.T) {
	m, db := newTestManager(t, 20)
	if err := os.WriteFile(db+"-wal", []byte("wal"), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := m.Create("auto_dashboard")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.Filename != "academy_db_20260102_030406_auto_dashboard.db" {
		t.Fatalf("unexpected name %q", info.Filename)
	}
	if _, err := os.Stat(info.Path + "-wal"); err != nil {
		t.Fatalf("wal sibling not copied: %v", err)
	}
	if _, err := os.Stat(info.Path + "-shm"); !os.IsNotExist(err) {
		t.Fatalf("shm should not exist, got %v", err)
	}
}

func TestRetentionKeepsNewest(t *testing.T) {
	m, _ := newTestManager(t, 3)
	var names []string
	for i := 0; i < 5; i++ {
		info, err := m.Create("manual")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		names = append(names, info.Filename)
	}

	list, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(list))
	}
	if list[0].Filename != names[4] || list[2].Filename != names[2] {
		t.Fatalf("unexpected order: %v", []string{list[0].Filename, list[1].Filename, list[2].Filename})
	}
	if list[0].SizeKB != core.Round2(4.0/1024) {
		t.Fatalf("size = %v", list[0].SizeKB)
	}
}

func TestRestore(t *testing.T) {
	m, db := newTestManager(t, 20)
	first, err := m.Create("manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.WriteFile(db, []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.Restore(first.Filename); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ := os.ReadFile(db)
	if string(got) != "live" {
		t.Fatalf("database not restored: %q", got)
	}
	if _, err := os.Stat(db + "-wal"); !os.IsNotExist(err) {
		t.Fatalf("stale wal should be removed")
	}

	list, _ := m.List()
	if len(list) != 2 || !strings.HasSuffix(list[0].Filename, "_before_restore.db") {
		t.Fatalf("expected a before_restore snapshot, got %+v", list)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	m, _ := newTestManager(t, 20)
	for _, name := range []string{"../academy.db", "academy_db_x/../../y.db", "other.db", ""} {
		if _, err := m.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Path(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if _, err := m.Path("academy_db_20260101_000000_manual.db"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing backup should be not found, got %v", err)
	}
}

func TestDisabledManager(t *testing.T) {
	m := Disabled(nil)
	if m.Enabled() {
		t.Fatal("expected disabled")
	}
	if _, err := m.Create("manual"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if list, err := m.List(); err != nil || len(list) != 0 {
		t.Fatalf("disabled list = %v, %v", list, err)
	}
}

func TestCreateWithoutDatabase(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.db"), t.TempDir(), 20, nil)
	if _, err := m.Create("manual"); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}
