package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/database"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// RBACService administers the permission model: roles, modules,
// permissions, and the grants tying them together. Every mutation and its
// audit entry commit in the same transaction.
type RBACService struct {
	db       database.Queryer
	runTx    TxRunner
	users    UserStore
	roles    RoleStore
	modules  ModuleStore
	perms    PermissionStore
	grants   GrantStore
	recorder *audit.Recorder
	snapshot audit.SnapshotFunc
	log      zerolog.Logger
}

type RBACDeps struct {
	DB       database.Queryer
	RunTx    TxRunner
	Users    UserStore
	Roles    RoleStore
	Modules  ModuleStore
	Perms    PermissionStore
	Grants   GrantStore
	Recorder *audit.Recorder
	Snapshot audit.SnapshotFunc
	Log      zerolog.Logger
}

func NewRBACService(d RBACDeps) *RBACService {
	if d.Snapshot == nil {
		d.Snapshot = audit.Snapshot
	}
	return &RBACService{
		db:       d.DB,
		runTx:    d.RunTx,
		users:    d.Users,
		roles:    d.Roles,
		modules:  d.Modules,
		perms:    d.Perms,
		grants:   d.Grants,
		recorder: d.Recorder,
		snapshot: d.Snapshot,
		log:      d.Log,
	}
}

// recordCreate snapshots the freshly inserted row and writes the create
// entry on the same transaction.
func (s *RBACService) recordCreate(ctx context.Context, q database.Queryer, table, id string, meta audit.Meta) error {
	newSnap, err := s.snapshot(ctx, q, table, id)
	if err != nil {
		return err
	}
	return s.recorder.Record(ctx, q, models.AuditActionCreate, table, id, nil, newSnap, meta)
}

func (s *RBACService) CreateRole(ctx context.Context, name string, meta audit.Meta) (models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Role{}, fmt.Errorf("%w: role name required", ErrBadInput)
	}

	if _, err := s.roles.FindByName(ctx, s.db, name); err == nil {
		return models.Role{}, ErrDuplicate
	} else if !errors.Is(err, repository.ErrRoleNotFound) {
		return models.Role{}, fmt.Errorf("check role name: %w", err)
	}

	role := models.Role{ID: ids.New(), Name: name, Status: models.RoleStatusActive}
	err := s.runTx(ctx, func(q database.Queryer) error {
		if err := s.roles.Create(ctx, q, role); err != nil {
			return fmt.Errorf("create role: %w", err)
		}
		return s.recordCreate(ctx, q, "roles", role.ID, meta)
	})
	if err != nil {
		return models.Role{}, err
	}
	return role, nil
}

func (s *RBACService) GetRole(ctx context.Context, id string) (models.Role, error) {
	role, err := s.roles.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return models.Role{}, ErrNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

func (s *RBACService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.roles.List(ctx, s.db)
}

type UpdateRoleInput struct {
	Name   string
	Status models.RoleStatus
}

func (s *RBACService) UpdateRole(ctx context.Context, id string, in UpdateRoleInput, meta audit.Meta) (models.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return models.Role{}, err
	}

	if in.Name != "" && !strings.EqualFold(in.Name, role.Name) {
		if _, err := s.roles.FindByName(ctx, s.db, in.Name); err == nil {
			return models.Role{}, ErrDuplicate
		} else if !errors.Is(err, repository.ErrRoleNotFound) {
			return models.Role{}, fmt.Errorf("check role name: %w", err)
		}
		role.Name = strings.TrimSpace(in.Name)
	}
	if in.Status != "" {
		if in.Status != models.RoleStatusActive && in.Status != models.RoleStatusInactive {
			return models.Role{}, fmt.Errorf("%w: unknown role status %q", ErrBadInput, in.Status)
		}
		role.Status = in.Status
	}

	err = s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "roles", id)
		if err != nil {
			return err
		}
		if err := s.roles.Update(ctx, q, role); err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		newSnap, err := s.snapshot(ctx, q, "roles", id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, models.AuditActionUpdate, "roles", id, oldSnap, newSnap, meta)
	})
	if err != nil {
		return models.Role{}, err
	}
	return role, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, id string, meta audit.Meta) error {
	return s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "roles", id)
		if err != nil {
			return err
		}
		if err := s.roles.SoftDelete(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrRoleNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete role: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "roles", id, oldSnap, nil, meta)
	})
}

func (s *RBACService) CreateModule(ctx context.Context, name string, meta audit.Meta) (models.Module, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return models.Module{}, fmt.Errorf("%w: module name required", ErrBadInput)
	}

	existing, err := s.modules.List(ctx, s.db)
	if err != nil {
		return models.Module{}, fmt.Errorf("list modules: %w", err)
	}
	for _, m := range existing {
		if strings.EqualFold(m.Name, name) {
			return models.Module{}, ErrDuplicate
		}
	}

	mod := models.Module{ID: ids.New(), Name: name}
	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.modules.Create(ctx, q, mod); err != nil {
			return fmt.Errorf("create module: %w", err)
		}
		return s.recordCreate(ctx, q, "modules", mod.ID, meta)
	})
	if err != nil {
		return models.Module{}, err
	}
	return mod, nil
}

func (s *RBACService) ListModules(ctx context.Context) ([]models.Module, error) {
	return s.modules.List(ctx, s.db)
}

func (s *RBACService) DeleteModule(ctx context.Context, id string, meta audit.Meta) error {
	return s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "modules", id)
		if err != nil {
			return err
		}
		if err := s.modules.SoftDelete(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrModuleNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete module: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "modules", id, oldSnap, nil, meta)
	})
}

func (s *RBACService) CreatePermission(ctx context.Context, name string, meta audit.Meta) (models.Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return models.Permission{}, fmt.Errorf("%w: permission name required", ErrBadInput)
	}

	existing, err := s.perms.List(ctx, s.db)
	if err != nil {
		return models.Permission{}, fmt.Errorf("list permissions: %w", err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, name) {
			return models.Permission{}, ErrDuplicate
		}
	}

	perm := models.Permission{ID: ids.New(), Name: name}
	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.perms.Create(ctx, q, perm); err != nil {
			return fmt.Errorf("create permission: %w", err)
		}
		return s.recordCreate(ctx, q, "permissions", perm.ID, meta)
	})
	if err != nil {
		return models.Permission{}, err
	}
	return perm, nil
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.perms.List(ctx, s.db)
}

func (s *RBACService) DeletePermission(ctx context.Context, id string, meta audit.Meta) error {
	return s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "permissions", id)
		if err != nil {
			return err
		}
		if err := s.perms.SoftDelete(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrPermissionNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete permission: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "permissions", id, oldSnap, nil, meta)
	})
}

type GrantInput struct {
	ModuleID     string
	PermissionID string
}

// checkGrantRefs verifies the module and permission both exist and are
// live before a grant may point at them.
func (s *RBACService) checkGrantRefs(ctx context.Context, in GrantInput) error {
	if _, err := s.modules.GetByID(ctx, s.db, in.ModuleID); err != nil {
		if errors.Is(err, repository.ErrModuleNotFound) {
			return fmt.Errorf("%w: module", ErrNotFound)
		}
		return fmt.Errorf("check module: %w", err)
	}
	if _, err := s.perms.GetByID(ctx, s.db, in.PermissionID); err != nil {
		if errors.Is(err, repository.ErrPermissionNotFound) {
			return fmt.Errorf("%w: permission", ErrNotFound)
		}
		return fmt.Errorf("check permission: %w", err)
	}
	return nil
}

func (s *RBACService) CreateRoleGrant(ctx context.Context, roleID string, in GrantInput, meta audit.Meta) (models.RoleGrant, error) {
	if _, err := s.roles.GetByID(ctx, s.db, roleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return models.RoleGrant{}, fmt.Errorf("%w: role", ErrNotFound)
		}
		return models.RoleGrant{}, fmt.Errorf("check role: %w", err)
	}
	if err := s.checkGrantRefs(ctx, in); err != nil {
		return models.RoleGrant{}, err
	}

	existing, err := s.grants.ListByRole(ctx, s.db, roleID)
	if err != nil {
		return models.RoleGrant{}, fmt.Errorf("list role grants: %w", err)
	}
	for _, g := range existing {
		if g.ModuleID == in.ModuleID && g.PermissionID == in.PermissionID {
			return models.RoleGrant{}, ErrDuplicate
		}
	}

	grant := models.RoleGrant{
		ID:           ids.New(),
		RoleID:       roleID,
		ModuleID:     in.ModuleID,
		PermissionID: in.PermissionID,
	}
	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.grants.CreateRoleGrant(ctx, q, grant); err != nil {
			return fmt.Errorf("create role grant: %w", err)
		}
		return s.recordCreate(ctx, q, "role_grants", grant.ID, meta)
	})
	if err != nil {
		return models.RoleGrant{}, err
	}
	return grant, nil
}

func (s *RBACService) ListRoleGrants(ctx context.Context, roleID string) ([]models.RoleGrant, error) {
	return s.grants.ListByRole(ctx, s.db, roleID)
}

func (s *RBACService) DeleteRoleGrant(ctx context.Context, id string, meta audit.Meta) error {
	return s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "role_grants", id)
		if err != nil {
			return err
		}
		if err := s.grants.SoftDeleteRoleGrant(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrGrantNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete role grant: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "role_grants", id, oldSnap, nil, meta)
	})
}

func (s *RBACService) CreateUserGrant(ctx context.Context, userID string, in GrantInput, meta audit.Meta) (models.UserGrant, error) {
	if _, err := s.users.GetByID(ctx, s.db, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.UserGrant{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return models.UserGrant{}, fmt.Errorf("check user: %w", err)
	}
	if err := s.checkGrantRefs(ctx, in); err != nil {
		return models.UserGrant{}, err
	}

	existing, err := s.grants.ListByUser(ctx, s.db, userID)
	if err != nil {
		return models.UserGrant{}, fmt.Errorf("list user grants: %w", err)
	}
	for _, g := range existing {
		if g.ModuleID == in.ModuleID && g.PermissionID == in.PermissionID {
			return models.UserGrant{}, ErrDuplicate
		}
	}

	grant := models.UserGrant{
		ID:           ids.New(),
		UserID:       userID,
		ModuleID:     in.ModuleID,
		PermissionID: in.PermissionID,
	}
	err = s.runTx(ctx, func(q database.Queryer) error {
		if err := s.grants.CreateUserGrant(ctx, q, grant); err != nil {
			return fmt.Errorf("create user grant: %w", err)
		}
		return s.recordCreate(ctx, q, "user_grants", grant.ID, meta)
	})
	if err != nil {
		return models.UserGrant{}, err
	}
	return grant, nil
}

func (s *RBACService) ListUserGrants(ctx context.Context, userID string) ([]models.UserGrant, error) {
	return s.grants.ListByUser(ctx, s.db, userID)
}

func (s *RBACService) DeleteUserGrant(ctx context.Context, id string, meta audit.Meta) error {
	return s.runTx(ctx, func(q database.Queryer) error {
		oldSnap, err := s.snapshot(ctx, q, "user_grants", id)
		if err != nil {
			return err
		}
		if err := s.grants.SoftDeleteUserGrant(ctx, q, id); err != nil {
			if errors.Is(err, repository.ErrGrantNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("delete user grant: %w", err)
		}
		return s.recorder.Record(ctx, q, models.AuditActionDelete, "user_grants", id, oldSnap, nil, meta)
	})
}
