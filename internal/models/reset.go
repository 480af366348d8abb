package models

import "time"

// ResetToken stores only the argon2 digest of the raw token; the raw value
// leaves the process exactly once, inside the reset email.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (t ResetToken) Live(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
