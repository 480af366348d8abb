package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"authgrid/api/internal/database"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// ErrWriteFailed wraps audit insert failures on create/update/delete.
// Callers must roll the surrounding transaction back when they see it.
var ErrWriteFailed = errors.New("audit write failed")

// Meta is the request context attached to every entry. Handlers build it
// from the HTTP request and thread it through the service call.
type Meta struct {
	ActorID   string
	IPAddress string
	Endpoint  string
	Context   map[string]any
}

// Sink is where entries land. *repository.AuditRepository satisfies it.
type Sink interface {
	Insert(ctx context.Context, q database.Queryer, e models.AuditEntry) error
}

// Recorder persists audit entries. Mutating operations pass their
// transaction's Queryer so the entry commits and rolls back with the
// mutation; login/logout/change-password pass the pool and treat failures
// as best-effort.
type Recorder struct {
	sink Sink
	log  zerolog.Logger
}

func NewRecorder(sink Sink, log zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, log: log}
}

var _ Sink = (*repository.AuditRepository)(nil)

// Record inserts the entry on q. The returned error is always
// ErrWriteFailed-wrapped; whether it is fatal is the caller's policy.
func (r *Recorder) Record(ctx context.Context, q database.Queryer, action models.AuditAction, table, targetID string, oldSnap, newSnap map[string]any, meta Meta) error {
	entry := models.AuditEntry{
		ID:          ids.New(),
		TargetTable: table,
		TargetID:    targetID,
		Action:      action,
		Changes:     Diff(oldSnap, newSnap),
		OldSnapshot: oldSnap,
		NewSnapshot: newSnap,
		ActorID:     meta.ActorID,
		IPAddress:   meta.IPAddress,
		Endpoint:    meta.Endpoint,
		Context:     meta.Context,
	}

	if err := r.sink.Insert(ctx, q, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// RecordBestEffort is Record for account-lifecycle actions: failures are
// logged and swallowed so login, logout and password changes never fail on
// a broken audit sink.
func (r *Recorder) RecordBestEffort(ctx context.Context, q database.Queryer, action models.AuditAction, table, targetID string, meta Meta) {
	if err := r.Record(ctx, q, action, table, targetID, nil, nil, meta); err != nil {
		r.log.Warn().Err(err).
			Str("action", string(action)).
			Str("target", table+"/"+targetID).
			Msg("best-effort audit write failed")
	}
}
