package service

import (
	"context"
	"errors"
	"fmt"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// PermissionService computes the effective (module, permission) set for a
// principal: the union of the live grants of their live role and their own
// live user grants. Grants are additive, never subtractive, so resolution
// is a plain union with no tie-breaking.
type PermissionService struct {
	db      database.Queryer
	users   UserStore
	roles   RoleStore
	modules ModuleStore
	perms   PermissionStore
	grants  GrantStore
}

func NewPermissionService(db database.Queryer, users UserStore, roles RoleStore, modules ModuleStore, perms PermissionStore, grants GrantStore) *PermissionService {
	return &PermissionService{
		db:      db,
		users:   users,
		roles:   roles,
		modules: modules,
		perms:   perms,
		grants:  grants,
	}
}

// EffectiveSet loads each table independently and joins in-process: a grant
// only survives if its module and permission both resolve to live rows. A
// principal whose role is missing or soft-deleted resolves to the empty set
// regardless of user grants.
func (s *PermissionService) EffectiveSet(ctx context.Context, userID string) (map[models.Grant]struct{}, error) {
	user, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	set := map[models.Grant]struct{}{}

	if _, err := s.roles.GetByID(ctx, s.db, user.RoleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			// role-less principals cannot act
			return set, nil
		}
		return nil, fmt.Errorf("load role: %w", err)
	}

	moduleNames, err := s.liveModuleNames(ctx)
	if err != nil {
		return nil, err
	}
	permNames, err := s.livePermissionNames(ctx)
	if err != nil {
		return nil, err
	}

	roleGrants, err := s.grants.ListByRole(ctx, s.db, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	for _, g := range roleGrants {
		addGrant(set, moduleNames, permNames, g.ModuleID, g.PermissionID)
	}

	userGrants, err := s.grants.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list user grants: %w", err)
	}
	for _, g := range userGrants {
		addGrant(set, moduleNames, permNames, g.ModuleID, g.PermissionID)
	}

	return set, nil
}

// Allows reports whether the principal's effective set contains the pair.
func (s *PermissionService) Allows(ctx context.Context, userID string, grant models.Grant) (bool, error) {
	set, err := s.EffectiveSet(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := set[grant]
	return ok, nil
}

func (s *PermissionService) liveModuleNames(ctx context.Context) (map[string]string, error) {
	modules, err := s.modules.List(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	names := make(map[string]string, len(modules))
	for _, m := range modules {
		names[m.ID] = m.Name
	}
	return names, nil
}

func (s *PermissionService) livePermissionNames(ctx context.Context) (map[string]string, error) {
	perms, err := s.perms.List(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	names := make(map[string]string, len(perms))
	for _, p := range perms {
		names[p.ID] = p.Name
	}
	return names, nil
}

func addGrant(set map[models.Grant]struct{}, moduleNames, permNames map[string]string, moduleID, permissionID string) {
	moduleName, ok := moduleNames[moduleID]
	if !ok {
		return
	}
	permName, ok := permNames[permissionID]
	if !ok {
		return
	}
	set[models.Grant{Module: moduleName, Permission: permName}] = struct{}{}
}
