package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrGrantNotFound = errors.New("grant not found")

// GrantRepository persists the two flat grant triples. Grants are purely
// additive; uniqueness over live rows is enforced by partial indexes.
type GrantRepository struct{}

func NewGrantRepository() *GrantRepository {
	return &GrantRepository{}
}

func (r *GrantRepository) CreateRoleGrant(ctx context.Context, q database.Queryer, g models.RoleGrant) error {
	const query = `
		INSERT INTO role_grants (id, role_id, module_id, permission_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := q.Exec(ctx, query, g.ID, g.RoleID, g.ModuleID, g.PermissionID)
	return duplicateOr(err)
}

func (r *GrantRepository) CreateUserGrant(ctx context.Context, q database.Queryer, g models.UserGrant) error {
	const query = `
		INSERT INTO user_grants (id, user_id, module_id, permission_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := q.Exec(ctx, query, g.ID, g.UserID, g.ModuleID, g.PermissionID)
	return duplicateOr(err)
}

func (r *GrantRepository) GetRoleGrant(ctx context.Context, q database.Queryer, id string) (models.RoleGrant, error) {
	const query = `
		SELECT id, role_id, module_id, permission_id, created_at, deleted_at
		FROM role_grants WHERE id = $1 AND deleted_at IS NULL
	`
	var g models.RoleGrant
	err := q.QueryRow(ctx, query, id).Scan(&g.ID, &g.RoleID, &g.ModuleID, &g.PermissionID, &g.CreatedAt, &g.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RoleGrant{}, ErrGrantNotFound
		}
		return models.RoleGrant{}, err
	}
	return g, nil
}

func (r *GrantRepository) GetUserGrant(ctx context.Context, q database.Queryer, id string) (models.UserGrant, error) {
	const query = `
		SELECT id, user_id, module_id, permission_id, created_at, deleted_at
		FROM user_grants WHERE id = $1 AND deleted_at IS NULL
	`
	var g models.UserGrant
	err := q.QueryRow(ctx, query, id).Scan(&g.ID, &g.UserID, &g.ModuleID, &g.PermissionID, &g.CreatedAt, &g.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserGrant{}, ErrGrantNotFound
		}
		return models.UserGrant{}, err
	}
	return g, nil
}

func (r *GrantRepository) ListByRole(ctx context.Context, q database.Queryer, roleID string) ([]models.RoleGrant, error) {
	const query = `
		SELECT id, role_id, module_id, permission_id, created_at, deleted_at
		FROM role_grants WHERE role_id = $1 AND deleted_at IS NULL
	`

	rows, err := q.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.RoleGrant
	for rows.Next() {
		var g models.RoleGrant
		if err := rows.Scan(&g.ID, &g.RoleID, &g.ModuleID, &g.PermissionID, &g.CreatedAt, &g.DeletedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *GrantRepository) ListByUser(ctx context.Context, q database.Queryer, userID string) ([]models.UserGrant, error) {
	const query = `
		SELECT id, user_id, module_id, permission_id, created_at, deleted_at
		FROM user_grants WHERE user_id = $1 AND deleted_at IS NULL
	`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.UserGrant
	for rows.Next() {
		var g models.UserGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.ModuleID, &g.PermissionID, &g.CreatedAt, &g.DeletedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *GrantRepository) SoftDeleteRoleGrant(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE role_grants SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *GrantRepository) SoftDeleteUserGrant(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE user_grants SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}
