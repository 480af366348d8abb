package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct{}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

const sessionColumns = `id, user_id, access_token_id, refresh_token_hash, device, ip_address, active, created_at, last_used_at, last_logout_at`

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.AccessTokenID,
		&s.RefreshTokenHash,
		&s.Device,
		&s.IPAddress,
		&s.Active,
		&s.CreatedAt,
		&s.LastUsedAt,
		&s.LastLogoutAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, q database.Queryer, s models.Session) error {
	const query = `
		INSERT INTO sessions (
			id, user_id, access_token_id, refresh_token_hash, device, ip_address, active, created_at, last_used_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW()
		)
	`
	_, err := q.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.AccessTokenID,
		s.RefreshTokenHash,
		s.Device,
		s.IPAddress,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, q database.Queryer, id string) (models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE id = $1
	`
	return scanSession(q.QueryRow(ctx, query, id))
}

func (r *SessionRepository) GetActiveByID(ctx context.Context, q database.Queryer, id string) (models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE id = $1 AND active
	`
	return scanSession(q.QueryRow(ctx, query, id))
}

func (r *SessionRepository) ListActiveByUser(ctx context.Context, q database.Queryer, userID string) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND active
		ORDER BY last_used_at DESC
	`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RotateAccessToken replaces the stored access token id after a refresh.
func (r *SessionRepository) RotateAccessToken(ctx context.Context, q database.Queryer, sessionID, accessTokenID string) error {
	const query = `
		UPDATE sessions
		SET access_token_id = $2, last_used_at = NOW()
		WHERE id = $1 AND active
	`
	cmd, err := q.Exec(ctx, query, sessionID, accessTokenID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Close clears the active flag and stamps last_logout_at. Closing an
// already-closed session is a no-op, keeping logout idempotent.
func (r *SessionRepository) Close(ctx context.Context, q database.Queryer, sessionID string) error {
	const query = `
		UPDATE sessions
		SET active = FALSE, last_logout_at = NOW()
		WHERE id = $1 AND active
	`
	_, err := q.Exec(ctx, query, sessionID)
	return err
}

func (r *SessionRepository) Touch(ctx context.Context, q database.Queryer, sessionID string) error {
	const query = `UPDATE sessions SET last_used_at = NOW() WHERE id = $1`
	_, err := q.Exec(ctx, query, sessionID)
	return err
}

func (r *SessionRepository) CountActiveByUser(ctx context.Context, q database.Queryer, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND active`
	var count int
	if err := q.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// StalestActiveByUser returns the active sessions past the keep horizon,
// stalest first, so callers can close them and revoke their tokens.
func (r *SessionRepository) StalestActiveByUser(ctx context.Context, q database.Queryer, userID string, keep int) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND active
		ORDER BY last_used_at DESC
		OFFSET $2
	`

	rows, err := q.Query(ctx, query, userID, keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) AppendLog(ctx context.Context, q database.Queryer, entry models.SessionLog) error {
	const query = `
		INSERT INTO session_logs (id, session_id, token_id, kind, issued_at, ip_address, device)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6)
	`
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.SessionID,
		entry.TokenID,
		entry.Kind,
		entry.IPAddress,
		entry.Device,
	)
	return err
}

// RevokeLogs stamps revoked_at on every unrevoked log entry of a session.
func (r *SessionRepository) RevokeLogs(ctx context.Context, q database.Queryer, sessionID string) error {
	const query = `
		UPDATE session_logs SET revoked_at = NOW()
		WHERE session_id = $1 AND revoked_at IS NULL
	`
	_, err := q.Exec(ctx, query, sessionID)
	return err
}

func (r *SessionRepository) ListLogs(ctx context.Context, q database.Queryer, sessionID string) ([]models.SessionLog, error) {
	const query = `
		SELECT id, session_id, token_id, kind, issued_at, revoked_at, ip_address, device
		FROM session_logs
		WHERE session_id = $1
		ORDER BY issued_at
	`

	rows, err := q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SessionLog
	for rows.Next() {
		var e models.SessionLog
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TokenID, &e.Kind, &e.IssuedAt, &e.RevokedAt, &e.IPAddress, &e.Device); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CloseIdle closes active sessions whose last use predates the cutoff.
// Run by the scheduler; returns the closed sessions so their stored access
// tokens can be revoked.
func (r *SessionRepository) CloseIdle(ctx context.Context, q database.Queryer, before string) ([]models.Session, error) {
	const query = `
		UPDATE sessions
		SET active = FALSE, last_logout_at = NOW()
		WHERE active AND last_used_at < NOW() - $1::interval
		RETURNING ` + sessionColumns + `
	`

	rows, err := q.Query(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
