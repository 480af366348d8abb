package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// Store interfaces mirror the repository surface. Every method takes the
// Queryer it should run on, so a service can hand the same transaction to a
// mutation and its audit write.

type UserStore interface {
	Create(ctx context.Context, q database.Queryer, user models.User) error
	GetByID(ctx context.Context, q database.Queryer, id string) (models.User, error)
	FindByEmail(ctx context.Context, q database.Queryer, email string) (models.User, error)
	List(ctx context.Context, q database.Queryer) ([]models.User, error)
	Update(ctx context.Context, q database.Queryer, user models.User) error
	UpdatePassword(ctx context.Context, q database.Queryer, id string, passwordHash []byte) error
	SoftDelete(ctx context.Context, q database.Queryer, id string) error
}

type RoleStore interface {
	Create(ctx context.Context, q database.Queryer, role models.Role) error
	GetByID(ctx context.Context, q database.Queryer, id string) (models.Role, error)
	FindByName(ctx context.Context, q database.Queryer, name string) (models.Role, error)
	List(ctx context.Context, q database.Queryer) ([]models.Role, error)
	Update(ctx context.Context, q database.Queryer, role models.Role) error
	SoftDelete(ctx context.Context, q database.Queryer, id string) error
}

type ModuleStore interface {
	Create(ctx context.Context, q database.Queryer, m models.Module) error
	GetByID(ctx context.Context, q database.Queryer, id string) (models.Module, error)
	List(ctx context.Context, q database.Queryer) ([]models.Module, error)
	Update(ctx context.Context, q database.Queryer, m models.Module) error
	SoftDelete(ctx context.Context, q database.Queryer, id string) error
}

type PermissionStore interface {
	Create(ctx context.Context, q database.Queryer, p models.Permission) error
	GetByID(ctx context.Context, q database.Queryer, id string) (models.Permission, error)
	List(ctx context.Context, q database.Queryer) ([]models.Permission, error)
	Update(ctx context.Context, q database.Queryer, p models.Permission) error
	SoftDelete(ctx context.Context, q database.Queryer, id string) error
}

type GrantStore interface {
	CreateRoleGrant(ctx context.Context, q database.Queryer, g models.RoleGrant) error
	CreateUserGrant(ctx context.Context, q database.Queryer, g models.UserGrant) error
	GetRoleGrant(ctx context.Context, q database.Queryer, id string) (models.RoleGrant, error)
	GetUserGrant(ctx context.Context, q database.Queryer, id string) (models.UserGrant, error)
	ListByRole(ctx context.Context, q database.Queryer, roleID string) ([]models.RoleGrant, error)
	ListByUser(ctx context.Context, q database.Queryer, userID string) ([]models.UserGrant, error)
	SoftDeleteRoleGrant(ctx context.Context, q database.Queryer, id string) error
	SoftDeleteUserGrant(ctx context.Context, q database.Queryer, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, q database.Queryer, s models.Session) error
	GetByID(ctx context.Context, q database.Queryer, id string) (models.Session, error)
	GetActiveByID(ctx context.Context, q database.Queryer, id string) (models.Session, error)
	ListActiveByUser(ctx context.Context, q database.Queryer, userID string) ([]models.Session, error)
	RotateAccessToken(ctx context.Context, q database.Queryer, sessionID, accessTokenID string) error
	Close(ctx context.Context, q database.Queryer, sessionID string) error
	Touch(ctx context.Context, q database.Queryer, sessionID string) error
	StalestActiveByUser(ctx context.Context, q database.Queryer, userID string, keep int) ([]models.Session, error)
	AppendLog(ctx context.Context, q database.Queryer, entry models.SessionLog) error
	RevokeLogs(ctx context.Context, q database.Queryer, sessionID string) error
}

type ResetTokenStore interface {
	Upsert(ctx context.Context, q database.Queryer, t models.ResetToken) error
	ListLive(ctx context.Context, q database.Queryer) ([]models.ResetToken, error)
	MarkUsed(ctx context.Context, q database.Queryer, id string) error
}

// TokenRevoker is satisfied by *revocation.Index.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, tokenExpiry time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TxRunner executes fn inside a transaction; the Queryer handed to fn
// carries that transaction.
type TxRunner func(ctx context.Context, fn func(q database.Queryer) error) error

// PgxTxRunner is the production TxRunner over a pgx pool.
func PgxTxRunner(db database.TxBeginner) TxRunner {
	return func(ctx context.Context, fn func(q database.Queryer) error) error {
		return database.RunInTx(ctx, db, func(tx pgx.Tx) error {
			return fn(tx)
		})
	}
}

var (
	_ UserStore       = (*repository.UserRepository)(nil)
	_ RoleStore       = (*repository.RoleRepository)(nil)
	_ ModuleStore     = (*repository.ModuleRepository)(nil)
	_ PermissionStore = (*repository.PermissionRepository)(nil)
	_ GrantStore      = (*repository.GrantRepository)(nil)
	_ SessionStore    = (*repository.SessionRepository)(nil)
	_ ResetTokenStore = (*repository.ResetTokenRepository)(nil)
)
