package audit

import (
	"reflect"
	"testing"
	"time"

	"authgrid/api/internal/models"
)

func TestDiffUpdate(t *testing.T) {
	oldSnap := map[string]any{"id": "7", "name": "A", "status": "active"}
	newSnap := map[string]any{"id": "7", "name": "B", "status": "active"}

	got := Diff(oldSnap, newSnap)
	want := map[string]models.FieldChange{
		"name": {Old: "A", New: "B"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff = %v, want %v", got, want)
	}
}

func TestDiffNoChange(t *testing.T) {
	snap := map[string]any{"id": "7", "name": "A"}

	if got := Diff(snap, map[string]any{"id": "7", "name": "A"}); len(got) != 0 {
		t.Errorf("identical snapshots produced changes: %v", got)
	}
}

func TestDiffCreateAndDelete(t *testing.T) {
	snap := map[string]any{"id": "7", "name": "A"}

	if got := Diff(nil, snap); len(got) != 0 {
		t.Errorf("create diff should be empty, got %v", got)
	}
	if got := Diff(snap, nil); len(got) != 0 {
		t.Errorf("delete diff should be empty, got %v", got)
	}
}

func TestDiffAddedAndRemovedKeys(t *testing.T) {
	oldSnap := map[string]any{"id": "7", "legacy": "x"}
	newSnap := map[string]any{"id": "7", "fresh": "y"}

	got := Diff(oldSnap, newSnap)
	want := map[string]models.FieldChange{
		"legacy": {Old: "x", New: nil},
		"fresh":  {Old: nil, New: "y"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bytes to string", []byte("$argon2id$..."), "$argon2id$..."},
		{"time to rfc3339", ts, "2026-08-30T12:00:00Z"},
		{"scalar passthrough", int64(42), int64(42)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalize(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("normalize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSnapshotRejectsUnknownTable(t *testing.T) {
	if _, err := Snapshot(nil, nil, "pg_catalog.pg_tables", "x"); err == nil {
		t.Fatal("unregistered table accepted")
	}
}
