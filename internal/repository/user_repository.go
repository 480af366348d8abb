package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

const userColumns = `id, email, password_hash, display_name, role_id, status, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.RoleID,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, q database.Queryer, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, display_name, role_id, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := q.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.RoleID,
		user.Status,
	)
	return duplicateOr(err)
}

func (r *UserRepository) GetByID(ctx context.Context, q database.Queryer, id string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(q.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, q database.Queryer, email string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE email = $1 AND deleted_at IS NULL
	`
	return scanUser(q.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, q database.Queryer) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, q database.Queryer, user models.User) error {
	const query = `
		UPDATE users
		SET email = $2, display_name = $3, role_id = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, user.ID, user.Email, user.DisplayName, user.RoleID, user.Status)
	if err != nil {
		return duplicateOr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, q database.Queryer, id string, passwordHash []byte) error {
	const query = `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, q database.Queryer, id string) error {
	const query = `
		UPDATE users SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
