package models

import "time"

type RoleStatus string

const (
	RoleStatusActive   RoleStatus = "active"
	RoleStatusInactive RoleStatus = "inactive"
)

type Role struct {
	ID        string
	Name      string
	Status    RoleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Module identifies a logical resource group (articles, billing, ...).
type Module struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Permission identifies an action verb (create, read, update, delete, ...).
type Permission struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type RoleGrant struct {
	ID           string
	RoleID       string
	ModuleID     string
	PermissionID string
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

type UserGrant struct {
	ID           string
	UserID       string
	ModuleID     string
	PermissionID string
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// Grant is a resolved (module, permission) pair by name. It is the unit of
// the effective permission set.
type Grant struct {
	Module     string
	Permission string
}
