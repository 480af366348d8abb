package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Insert(ctx context.Context, q database.Queryer, e models.AuditEntry) error {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	oldSnap, err := json.Marshal(e.OldSnapshot)
	if err != nil {
		return fmt.Errorf("marshal old snapshot: %w", err)
	}
	newSnap, err := json.Marshal(e.NewSnapshot)
	if err != nil {
		return fmt.Errorf("marshal new snapshot: %w", err)
	}
	contextMap, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	const query = `
		INSERT INTO audit_entries (
			id, target_table, target_id, action, changes, old_snapshot, new_snapshot,
			actor_id, performed_at, ip_address, endpoint, context
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, $10, $11
		)
	`
	_, err = q.Exec(ctx, query,
		e.ID,
		e.TargetTable,
		e.TargetID,
		e.Action,
		changes,
		oldSnap,
		newSnap,
		e.ActorID,
		e.IPAddress,
		e.Endpoint,
		contextMap,
	)
	return err
}

// AuditFilter narrows List; zero values mean "any".
type AuditFilter struct {
	TargetTable string
	TargetID    string
	ActorID     string
	From        time.Time
	To          time.Time
	Limit       int
}

func (r *AuditRepository) List(ctx context.Context, q database.Queryer, f AuditFilter) ([]models.AuditEntry, error) {
	query := `
		SELECT id, target_table, target_id, action, changes, old_snapshot, new_snapshot,
		       actor_id, performed_at, ip_address, endpoint, context
		FROM audit_entries
		WHERE 1=1
	`
	var args []any

	if f.TargetTable != "" {
		args = append(args, f.TargetTable)
		query += fmt.Sprintf(" AND target_table = $%d", len(args))
	}
	if f.TargetID != "" {
		args = append(args, f.TargetID)
		query += fmt.Sprintf(" AND target_id = $%d", len(args))
	}
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND performed_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND performed_at < $%d", len(args))
	}

	query += " ORDER BY performed_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e          models.AuditEntry
			changes    []byte
			oldSnap    []byte
			newSnap    []byte
			contextRaw []byte
		)
		if err := rows.Scan(
			&e.ID, &e.TargetTable, &e.TargetID, &e.Action, &changes, &oldSnap, &newSnap,
			&e.ActorID, &e.PerformedAt, &e.IPAddress, &e.Endpoint, &contextRaw,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal changes: %w", err)
		}
		if err := json.Unmarshal(oldSnap, &e.OldSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal old snapshot: %w", err)
		}
		if err := json.Unmarshal(newSnap, &e.NewSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal new snapshot: %w", err)
		}
		if err := json.Unmarshal(contextRaw, &e.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
