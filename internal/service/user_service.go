package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// UserService covers administrative user management and self-service
// password change. Registration lives on AuthService.
type UserService struct {
	db       database.Queryer
	runTx    TxRunner
	users    UserStore
	roles    RoleStore
	sessions SessionStore
	revoker  TokenRevoker
	hasher   *security.Hasher
	codec    *security.TokenCodec
	recorder *audit.Recorder
	snapshot audit.SnapshotFunc
	log      zerolog.Logger
}

type UserDeps struct {
	DB       database.Queryer
	RunTx    TxRunner
	Users    UserStore
	Roles    RoleStore
	Sessions SessionStore
	Revoker  TokenRevoker
	Hasher   *security.Hasher
	Codec    *security.TokenCodec
	Recorder *audit.Recorder
	Snapshot audit.SnapshotFunc
	Log      zerolog.Logger
}

func NewUserService(d UserDeps) *UserService {
	if d.Snapshot == nil {
		d.Snapshot = audit.Snapshot
	}
	return &UserService{
		db:       d.DB,
		runTx:    d.RunTx,
		users:    d.Users,
		roles:    d.Roles,
		sessions: d.Sessions,
		revoker:  d.Revoker,
		hasher:   d.Hasher,
		codec:    d.Codec,
		recorder: d.Recorder,
		snapshot: d.Snapshot,
		log:      d.Log,
	}
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx, s.db)
}

type UpdateUserInput struct {
	DisplayName *string
	RoleID      *string
	Status      *models.UserStatus
}

// Update applies the set fields. Suspending a principal also kills every
// live session, so the lockout takes effect before their access token
// would otherwise expire.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput, meta audit.Meta) (models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	suspending := false
	if in.DisplayName != nil {
		user.DisplayName = *in.DisplayName
	}
	if in.RoleID != nil && *in.RoleID != user.RoleID {
		if _, err := s.roles.GetByID(ctx, s.db, *in.RoleID); err != nil {
			if errors.Is(err, repository.ErrRoleNotFound) {
				return models.User{}, fmt.Errorf("%w: role", ErrNotFound)
			}
			return models.User{}, fmt.Errorf("check role: %w", err)
		}
		user.RoleID = *in.RoleID
	}
	if in.Status != nil {
		switch *in.Status {
		case models.UserStatusActive, models.UserStatusSuspended:
		default:
			return models.User{}, fmt.Errorf("%w: unknown user status %q", ErrBadInput, *in.Status)
		}
		suspending = *in.Status == models.UserStatusSuspended && user.Status != models.UserStatusSuspended
		user.Status = *in.Status
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "users", id)
		if err != nil {
			return err
		}
		if err := s.users.Update(ctx, q, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		newSnap, err := s.snapshot(ctx, q, "users", id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, models.AuditActionUpdate, "users", id, oldSnap, newSnap, meta)
	})
	if err != nil {
		return models.User{}, err
	}

	if suspending {
		if err := s.killSessions(ctx, id, ""); err != nil {
			return models.User{}, fmt.Errorf("%w: %v", ErrDependency, err)
		}
	}
	return user, nil
}

// Delete soft-deletes the user and kills every live session.
func (s *UserService) Delete(ctx context.Context, id string, meta audit.Meta) error {
	err := s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "users", id)
		if err != nil {
			return err
		}
		if err := s.users.SoftDelete(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete user: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "users", id, oldSnap, nil, meta)
	})
	if err != nil {
		return err
	}

	if err := s.killSessions(ctx, id, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return nil
}

// ChangePassword verifies the current password before accepting the new
// one, then invalidates every other session of the principal. The caller's
// own session survives.
func (s *UserService) ChangePassword(ctx context.Context, userID, keepSessionID, current, next, confirm string, meta audit.Meta) error {
	if next != confirm {
		return ErrPasswordMismatch
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrBadCredentials
	}

	passwordHash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		return s.users.UpdatePassword(ctx, q, userID, passwordHash)
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.killSessions(ctx, userID, keepSessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	meta.ActorID = userID
	s.recorder.RecordBestEffort(ctx, s.db, models.AuditActionChangePassword, "users", userID, meta)
	return nil
}

// Sessions lists the principal's live sessions for the self-service view.
func (s *UserService) Sessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessions.ListActiveByUser(ctx, s.db, userID)
}

// CloseSession ends one of the principal's own sessions. Asking for a
// session that is not theirs reads as not found.
func (s *UserService) CloseSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetActiveByID(ctx, s.db, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotFound
		}
		return err
	}
	if sess.UserID != userID {
		return ErrNotFound
	}
	return s.terminate(ctx, sess)
}

func (s *UserService) killSessions(ctx context.Context, userID, keepSessionID string) error {
	live, err := s.sessions.ListActiveByUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	for _, sess := range live {
		if sess.ID == keepSessionID {
			continue
		}
		if err := s.terminate(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserService) terminate(ctx context.Context, sess models.Session) error {
	if err := s.revoker.Revoke(ctx, sess.AccessTokenID, time.Now().Add(s.codec.AccessTTL())); err != nil {
		return err
	}
	if err := s.sessions.Close(ctx, s.db, sess.ID); err != nil {
		return err
	}
	return s.sessions.RevokeLogs(ctx, s.db, sess.ID)
}
