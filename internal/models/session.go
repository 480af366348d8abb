package models

import "time"

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

type Session struct {
	ID               string
	UserID           string
	AccessTokenID    string
	RefreshTokenHash []byte
	Device           string
	IPAddress        string
	Active           bool
	CreatedAt        time.Time
	LastUsedAt       time.Time
	LastLogoutAt     *time.Time
}

// SessionLog is an append-only record of every token issued under a session.
type SessionLog struct {
	ID        string
	SessionID string
	TokenID   string
	Kind      TokenKind
	IssuedAt  time.Time
	RevokedAt *time.Time
	IPAddress string
	Device    string
}
