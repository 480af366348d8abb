package audit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrUnknownTable = errors.New("table not registered for auditing")

// SnapshotFunc matches Snapshot; services take one so tests can substitute
// canned rows without a database.
type SnapshotFunc func(ctx context.Context, q database.Queryer, table, id string) (map[string]any, error)

// auditableTables whitelists the snapshot targets. Snapshot interpolates the
// table name into SQL, so it must never come from request input.
var auditableTables = map[string]struct{}{
	"users":       {},
	"roles":       {},
	"modules":     {},
	"permissions": {},
	"role_grants": {},
	"user_grants": {},
}

// Snapshot reads the full row as a column→value map, or nil when the row
// does not exist. It runs on the caller's Queryer so that a snapshot taken
// inside a transaction sees that transaction's state.
func Snapshot(ctx context.Context, q database.Queryer, table, id string) (map[string]any, error) {
	if _, ok := auditableTables[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		return nil, nil
	}

	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", table, err)
	}

	snap := make(map[string]any, len(values))
	for i, fd := range rows.FieldDescriptions() {
		snap[fd.Name] = normalize(values[i])
	}
	return snap, nil
}

// normalize flattens driver types so diffs compare stable scalar forms.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Diff returns exactly { k : {old[k], new[k]} | old[k] ≠ new[k] }. Create
// (nil old) and delete (nil new) yield an empty map; the full snapshots are
// stored alongside and carry those shapes.
func Diff(oldSnap, newSnap map[string]any) map[string]models.FieldChange {
	changes := map[string]models.FieldChange{}
	if oldSnap == nil || newSnap == nil {
		return changes
	}

	for k, oldVal := range oldSnap {
		newVal, ok := newSnap[k]
		if !ok {
			changes[k] = models.FieldChange{Old: oldVal, New: nil}
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			changes[k] = models.FieldChange{Old: oldVal, New: newVal}
		}
	}
	for k, newVal := range newSnap {
		if _, ok := oldSnap[k]; !ok {
			changes[k] = models.FieldChange{Old: nil, New: newVal}
		}
	}
	return changes
}
