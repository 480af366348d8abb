package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository struct{}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{}
}

const roleColumns = `id, name, status, created_at, updated_at, deleted_at`

func scanRole(row pgx.Row) (models.Role, error) {
	var role models.Role
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Status,
		&role.CreatedAt,
		&role.UpdatedAt,
		&role.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) Create(ctx context.Context, q database.Queryer, role models.Role) error {
	const query = `
		INSERT INTO roles (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, role.ID, role.Name, role.Status)
	return duplicateOr(err)
}

func (r *RoleRepository) GetByID(ctx context.Context, q database.Queryer, id string) (models.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles WHERE id = $1 AND deleted_at IS NULL
	`
	return scanRole(q.QueryRow(ctx, query, id))
}

func (r *RoleRepository) FindByName(ctx context.Context, q database.Queryer, name string) (models.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles WHERE LOWER(name) = LOWER($1) AND deleted_at IS NULL
	`
	return scanRole(q.QueryRow(ctx, query, name))
}

func (r *RoleRepository) List(ctx context.Context, q database.Queryer) ([]models.Role, error) {
	const query = `
		SELECT ` + roleColumns + `
		FROM roles WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Update(ctx context.Context, q database.Queryer, role models.Role) error {
	const query = `
		UPDATE roles SET name = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, role.ID, role.Name, role.Status)
	if err != nil {
		return duplicateOr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) SoftDelete(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE roles SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}
