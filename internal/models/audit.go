package models

import "time"

type AuditAction string

const (
	AuditActionLogin          AuditAction = "login"
	AuditActionLogout         AuditAction = "logout"
	AuditActionChangePassword AuditAction = "change-password"
	AuditActionCreate         AuditAction = "create"
	AuditActionUpdate         AuditAction = "update"
	AuditActionDelete         AuditAction = "delete"
)

// FieldChange is one before/after pair inside an audit diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditEntry references its actor and target by identifier only, never by
// foreign key, so purges of source rows cannot invalidate history.
type AuditEntry struct {
	ID          string
	TargetTable string
	TargetID    string
	Action      AuditAction
	Changes     map[string]FieldChange
	OldSnapshot map[string]any
	NewSnapshot map[string]any
	ActorID     string
	PerformedAt time.Time
	IPAddress   string
	Endpoint    string
	Context     map[string]any
}
