package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrPermissionNotFound = errors.New("permission not found")

type PermissionRepository struct{}

func NewPermissionRepository() *PermissionRepository {
	return &PermissionRepository{}
}

func scanPermission(row pgx.Row) (models.Permission, error) {
	var p models.Permission
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Permission{}, ErrPermissionNotFound
		}
		return models.Permission{}, err
	}
	return p, nil
}

func (r *PermissionRepository) Create(ctx context.Context, q database.Queryer, p models.Permission) error {
	const query = `
		INSERT INTO permissions (id, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, p.ID, p.Name)
	return duplicateOr(err)
}

func (r *PermissionRepository) GetByID(ctx context.Context, q database.Queryer, id string) (models.Permission, error) {
	const query = `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM permissions WHERE id = $1 AND deleted_at IS NULL
	`
	return scanPermission(q.QueryRow(ctx, query, id))
}

func (r *PermissionRepository) List(ctx context.Context, q database.Queryer) ([]models.Permission, error) {
	const query = `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM permissions WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *PermissionRepository) Update(ctx context.Context, q database.Queryer, p models.Permission) error {
	const query = `
		UPDATE permissions SET name = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, p.ID, p.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (r *PermissionRepository) SoftDelete(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE permissions SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}
