package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/config"
	"authgrid/api/internal/database"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// MailQueue is satisfied by *mail.Mailer.
type MailQueue interface {
	Enqueue(msg mail.Message)
}

// AuthService owns every credential state transition: registration, the
// login/refresh/logout token lifecycle, and the password-reset flow.
type AuthService struct {
	db       database.Queryer
	runTx    TxRunner
	users    UserStore
	roles    RoleStore
	sessions SessionStore
	resets   ResetTokenStore
	revoker  TokenRevoker
	hasher   *security.Hasher
	codec    *security.TokenCodec
	recorder *audit.Recorder
	mailer   MailQueue
	snapshot audit.SnapshotFunc
	cfg      *config.AppConfig
	log      zerolog.Logger
}

type AuthDeps struct {
	DB       database.Queryer
	RunTx    TxRunner
	Users    UserStore
	Roles    RoleStore
	Sessions SessionStore
	Resets   ResetTokenStore
	Revoker  TokenRevoker
	Hasher   *security.Hasher
	Codec    *security.TokenCodec
	Recorder *audit.Recorder
	Mailer   MailQueue
	Snapshot audit.SnapshotFunc
	Config   *config.AppConfig
	Log      zerolog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.Snapshot == nil {
		d.Snapshot = audit.Snapshot
	}
	return &AuthService{
		db:       d.DB,
		runTx:    d.RunTx,
		users:    d.Users,
		roles:    d.Roles,
		sessions: d.Sessions,
		resets:   d.Resets,
		revoker:  d.Revoker,
		hasher:   d.Hasher,
		codec:    d.Codec,
		recorder: d.Recorder,
		mailer:   d.Mailer,
		snapshot: d.Snapshot,
		cfg:      d.Config,
		log:      d.Log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Status      models.UserStatus
	RoleID      string
}

// Register creates a principal. The insert and its audit entry share one
// transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta audit.Meta) (string, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return "", fmt.Errorf("%w: valid email required", ErrBadInput)
	}
	if in.Status == "" {
		in.Status = models.UserStatusActive
	}

	if _, err := s.users.FindByEmail(ctx, s.db, in.Email); err == nil {
		return "", ErrDuplicate
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return "", fmt.Errorf("check email: %w", err)
	}

	if _, err := s.roles.GetByID(ctx, s.db, in.RoleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return "", fmt.Errorf("%w: role", ErrNotFound)
		}
		return "", fmt.Errorf("check role: %w", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        in.Email,
		PasswordHash: passwordHash,
		DisplayName:  in.DisplayName,
		RoleID:       in.RoleID,
		Status:       in.Status,
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.users.Create(ctx, q, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		newSnap, err := s.snapshot(ctx, q, "users", user.ID)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, models.AuditActionCreate, "users", user.ID, nil, newSnap, meta)
	})
	if err != nil {
		return "", err
	}

	if msg, err := welcomeMail(user); err == nil {
		s.mailer.Enqueue(msg)
	}

	return user.ID, nil
}

type LoginInput struct {
	Email    string
	Password string
	Device   string
	Address  string
}

type TokenPair struct {
	Access  string
	Refresh string
	User    models.User
}

func (s *AuthService) Login(ctx context.Context, in LoginInput, meta audit.Meta) (TokenPair, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	user, err := s.users.FindByEmail(ctx, s.db, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrBadCredentials
		}
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, ErrBadCredentials
	}

	if user.Status != models.UserStatusActive {
		return TokenPair{}, ErrSuspended
	}

	pair, err := s.openSession(ctx, user, in.Device, in.Address)
	if err != nil {
		return TokenPair{}, err
	}

	meta.ActorID = user.ID
	s.recorder.RecordBestEffort(ctx, s.db, models.AuditActionLogin, "users", user.ID, meta)

	return pair, nil
}

func (s *AuthService) openSession(ctx context.Context, user models.User, device, address string) (TokenPair, error) {
	sessionID := ids.New()

	access, accessClaims, err := s.codec.MintAccess(user, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshClaims, err := s.codec.MintRefresh(user.ID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}

	refreshHash, err := s.hasher.HashToken(refresh)
	if err != nil {
		return TokenPair{}, err
	}

	session := models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		AccessTokenID:    accessClaims.ID,
		RefreshTokenHash: refreshHash,
		Device:           device,
		IPAddress:        address,
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.sessions.Create(ctx, q, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		logs := []models.SessionLog{
			{ID: ids.New(), SessionID: sessionID, TokenID: accessClaims.ID, Kind: models.TokenKindAccess, IPAddress: address, Device: device},
			{ID: ids.New(), SessionID: sessionID, TokenID: refreshClaims.ID, Kind: models.TokenKindRefresh, IPAddress: address, Device: device},
		}
		for _, entry := range logs {
			if err := s.sessions.AppendLog(ctx, q, entry); err != nil {
				return fmt.Errorf("append session log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		// cannot guarantee later revocation: hard failure
		return TokenPair{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	return TokenPair{Access: access, Refresh: refresh, User: user}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	max := s.cfg.Security.MaxSessions
	if max <= 0 {
		return nil
	}

	stale, err := s.sessions.StalestActiveByUser(ctx, s.db, userID, max)
	if err != nil {
		return err
	}
	for _, sess := range stale {
		if err := s.closeSession(ctx, sess); err != nil {
			return err
		}
		s.log.Info().Str("session_id", sess.ID).Str("user_id", userID).Msg("session evicted by cap")
	}
	return nil
}

func (s *AuthService) closeSession(ctx context.Context, sess models.Session) error {
	if err := s.revoker.Revoke(ctx, sess.AccessTokenID, time.Now().Add(s.codec.AccessTTL())); err != nil {
		return err
	}
	if err := s.sessions.Close(ctx, s.db, sess.ID); err != nil {
		return err
	}
	return s.sessions.RevokeLogs(ctx, s.db, sess.ID)
}

// Refresh redeems a live refresh token for a fresh access token and
// rotates the session's access-token record.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if revoked {
		return "", ErrRevoked
	}

	session, err := s.sessions.GetActiveByID(ctx, s.db, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("load session: %w", err)
	}

	ok, err := s.hasher.Verify(refreshToken, session.RefreshTokenHash)
	if err != nil || !ok {
		return "", ErrNoSession
	}

	user, err := s.users.GetByID(ctx, s.db, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if user.Status != models.UserStatusActive {
		return "", ErrSuspended
	}

	access, accessClaims, err := s.codec.MintAccess(user, session.ID)
	if err != nil {
		return "", err
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.sessions.RotateAccessToken(ctx, q, session.ID, accessClaims.ID); err != nil {
			return fmt.Errorf("rotate session: %w", err)
		}
		entry := models.SessionLog{
			ID:        ids.New(),
			SessionID: session.ID,
			TokenID:   accessClaims.ID,
			Kind:      models.TokenKindAccess,
			IPAddress: session.IPAddress,
			Device:    session.Device,
		}
		return s.sessions.AppendLog(ctx, q, entry)
	})
	if err != nil {
		return "", err
	}

	return access, nil
}

// Logout revokes both tokens and closes the session. Expired but
// verifiable tokens are accepted so users can log out after idle expiry;
// repeating a logout succeeds.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta audit.Meta) error {
	claims, err := s.codec.ParseAccessExpired(accessToken)
	if err != nil {
		return err
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if refreshToken != "" {
		if refreshClaims, err := s.codec.ParseRefreshExpired(refreshToken); err == nil {
			if err := s.revoker.Revoke(ctx, refreshClaims.ID, refreshClaims.ExpiresAt.Time); err != nil {
				return fmt.Errorf("%w: %v", ErrDependency, err)
			}
		}
	}

	if claims.SessionID != "" {
		if err := s.sessions.Close(ctx, s.db, claims.SessionID); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		if err := s.sessions.RevokeLogs(ctx, s.db, claims.SessionID); err != nil {
			return fmt.Errorf("revoke session logs: %w", err)
		}
	}

	meta.ActorID = claims.UserID
	s.recorder.RecordBestEffort(ctx, s.db, models.AuditActionLogout, "users", claims.UserID, meta)

	return nil
}

// Forgot issues a reset token and mails it. The response never discloses
// whether the address is registered.
func (s *AuthService) Forgot(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	raw, digest, err := s.hasher.GenerateToken(32)
	if err != nil {
		return err
	}

	token := models.ResetToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: digest,
		ExpiresAt: time.Now().Add(s.cfg.Security.ResetTokenTTL),
	}
	if err := s.resets.Upsert(ctx, s.db, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if msg, err := resetMail(s.cfg, user, raw); err == nil {
		s.mailer.Enqueue(msg)
	} else {
		s.log.Warn().Err(err).Msg("reset mail render failed")
	}

	return nil
}

// VerifyReset checks raw against the live tokens without consuming it.
func (s *AuthService) VerifyReset(ctx context.Context, raw string) error {
	_, err := s.matchResetToken(ctx, raw)
	return err
}

// Reset consumes the token, changes the password, and kills every live
// session of the principal.
func (s *AuthService) Reset(ctx context.Context, raw, newPassword, confirm string, meta audit.Meta) error {
	if newPassword != confirm {
		return ErrPasswordMismatch
	}

	token, err := s.matchResetToken(ctx, raw)
	if err != nil {
		return err
	}

	// hash first so a rejected password leaves the token live
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// conditional flip; a concurrent consume of the same raw loses here
	if err := s.resets.MarkUsed(ctx, s.db, token.ID); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		return s.users.UpdatePassword(ctx, q, token.UserID, passwordHash)
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	live, err := s.sessions.ListActiveByUser(ctx, s.db, token.UserID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, sess := range live {
		if err := s.closeSession(ctx, sess); err != nil {
			return fmt.Errorf("%w: %v", ErrDependency, err)
		}
	}

	meta.ActorID = token.UserID
	s.recorder.RecordBestEffort(ctx, s.db, models.AuditActionChangePassword, "users", token.UserID, meta)

	return nil
}

func (s *AuthService) matchResetToken(ctx context.Context, raw string) (models.ResetToken, error) {
	live, err := s.resets.ListLive(ctx, s.db)
	if err != nil {
		return models.ResetToken{}, fmt.Errorf("list reset tokens: %w", err)
	}
	for _, t := range live {
		ok, err := s.hasher.Verify(raw, t.TokenHash)
		if err == nil && ok {
			return t, nil
		}
	}
	return models.ResetToken{}, ErrInvalidResetToken
}

func welcomeMail(user models.User) (mail.Message, error) {
	return mail.WelcomeMessage(user.Email, mail.WelcomeParams{
		Name:  user.DisplayName,
		Email: user.Email,
	})
}

func resetMail(cfg *config.AppConfig, user models.User, raw string) (mail.Message, error) {
	link := fmt.Sprintf("%s%s?token=%s", cfg.Frontend.BaseURL, cfg.Frontend.ResetPath, raw)
	return mail.ResetMessage(user.Email, mail.ResetParams{
		Name: user.DisplayName,
		Link: link,
		TTL:  cfg.Security.ResetTokenTTL.String(),
	})
}
