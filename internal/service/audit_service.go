package service

import (
	"context"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// AuditStore is satisfied by *repository.AuditRepository.
type AuditStore interface {
	List(ctx context.Context, q database.Queryer, f repository.AuditFilter) ([]models.AuditEntry, error)
}

var _ AuditStore = (*repository.AuditRepository)(nil)

// AuditService is the read side of the audit trail. Writes go through
// audit.Recorder on the mutating services.
type AuditService struct {
	db      database.Queryer
	entries AuditStore
}

func NewAuditService(db database.Queryer, entries AuditStore) *AuditService {
	return &AuditService{db: db, entries: entries}
}

func (s *AuditService) List(ctx context.Context, f repository.AuditFilter) ([]models.AuditEntry, error) {
	return s.entries.List(ctx, s.db, f)
}
