package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrModuleNotFound = errors.New("module not found")

type ModuleRepository struct{}

func NewModuleRepository() *ModuleRepository {
	return &ModuleRepository{}
}

func scanModule(row pgx.Row) (models.Module, error) {
	var m models.Module
	if err := row.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Module{}, ErrModuleNotFound
		}
		return models.Module{}, err
	}
	return m, nil
}

func (r *ModuleRepository) Create(ctx context.Context, q database.Queryer, m models.Module) error {
	const query = `
		INSERT INTO modules (id, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, m.ID, m.Name)
	return duplicateOr(err)
}

func (r *ModuleRepository) GetByID(ctx context.Context, q database.Queryer, id string) (models.Module, error) {
	const query = `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM modules WHERE id = $1 AND deleted_at IS NULL
	`
	return scanModule(q.QueryRow(ctx, query, id))
}

func (r *ModuleRepository) List(ctx context.Context, q database.Queryer) ([]models.Module, error) {
	const query = `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM modules WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []models.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func (r *ModuleRepository) Update(ctx context.Context, q database.Queryer, m models.Module) error {
	const query = `
		UPDATE modules SET name = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, m.ID, m.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func (r *ModuleRepository) SoftDelete(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE modules SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}
