package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"authgrid/api/internal/models"
)

// permFixture wires a user with one role grant (articles/read via role) and
// one direct user grant (billing/export).
type permFixture struct {
	svc     *PermissionService
	users   *fakeUsers
	roles   *fakeRoles
	modules *fakeModules
	perms   *fakePerms
	grants  *fakeGrants
}

func newPermFixture() *permFixture {
	f := &permFixture{
		users: newFakeUsers(models.User{
			ID: "user-1", Email: "u@example.com", RoleID: "role-1", Status: models.UserStatusActive,
		}),
		roles:   newFakeRoles(models.Role{ID: "role-1", Name: "editor", Status: models.RoleStatusActive}),
		modules: newFakeModules(models.Module{ID: "mod-articles", Name: "articles"}, models.Module{ID: "mod-billing", Name: "billing"}),
		perms:   newFakePerms(models.Permission{ID: "perm-read", Name: "read"}, models.Permission{ID: "perm-export", Name: "export"}),
		grants:  newFakeGrants(),
	}
	f.grants.roleGrants["rg-1"] = models.RoleGrant{ID: "rg-1", RoleID: "role-1", ModuleID: "mod-articles", PermissionID: "perm-read"}
	f.grants.userGrants["ug-1"] = models.UserGrant{ID: "ug-1", UserID: "user-1", ModuleID: "mod-billing", PermissionID: "perm-export"}
	f.svc = NewPermissionService(nil, f.users, f.roles, f.modules, f.perms, f.grants)
	return f
}

func TestEffectiveSetUnionsRoleAndUserGrants(t *testing.T) {
	f := newPermFixture()

	set, err := f.svc.EffectiveSet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EffectiveSet failed: %v", err)
	}
	want := []models.Grant{
		{Module: "articles", Permission: "read"},
		{Module: "billing", Permission: "export"},
	}
	if len(set) != len(want) {
		t.Fatalf("set size = %d, want %d (%v)", len(set), len(want), set)
	}
	for _, g := range want {
		if _, ok := set[g]; !ok {
			t.Errorf("missing grant %v", g)
		}
	}
}

func TestAllows(t *testing.T) {
	f := newPermFixture()

	ok, err := f.svc.Allows(context.Background(), "user-1", models.Grant{Module: "articles", Permission: "read"})
	if err != nil || !ok {
		t.Errorf("articles/read = %v, %v; want allowed", ok, err)
	}
	ok, err = f.svc.Allows(context.Background(), "user-1", models.Grant{Module: "articles", Permission: "export"})
	if err != nil || ok {
		t.Errorf("articles/export = %v, %v; want denied", ok, err)
	}
}

func TestEffectiveSetUnknownUser(t *testing.T) {
	f := newPermFixture()

	if _, err := f.svc.EffectiveSet(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEffectiveSetEmptyWhenRoleDeleted(t *testing.T) {
	f := newPermFixture()
	now := time.Now()
	role := f.roles.rows["role-1"]
	role.DeletedAt = &now
	f.roles.rows["role-1"] = role

	set, err := f.svc.EffectiveSet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EffectiveSet failed: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("set = %v, want empty when the role is gone", set)
	}
}

func TestEffectiveSetSkipsGrantWithDeadModule(t *testing.T) {
	f := newPermFixture()
	now := time.Now()
	mod := f.modules.rows["mod-articles"]
	mod.DeletedAt = &now
	f.modules.rows["mod-articles"] = mod

	set, err := f.svc.EffectiveSet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EffectiveSet failed: %v", err)
	}
	if _, ok := set[models.Grant{Module: "articles", Permission: "read"}]; ok {
		t.Error("grant pointing at a deleted module survived")
	}
	if _, ok := set[models.Grant{Module: "billing", Permission: "export"}]; !ok {
		t.Error("unrelated grant dropped")
	}
}

func TestEffectiveSetSkipsGrantWithDeadPermission(t *testing.T) {
	f := newPermFixture()
	now := time.Now()
	perm := f.perms.rows["perm-export"]
	perm.DeletedAt = &now
	f.perms.rows["perm-export"] = perm

	set, err := f.svc.EffectiveSet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EffectiveSet failed: %v", err)
	}
	if _, ok := set[models.Grant{Module: "billing", Permission: "export"}]; ok {
		t.Error("grant pointing at a deleted permission survived")
	}
}

func TestEffectiveSetSkipsSoftDeletedGrants(t *testing.T) {
	f := newPermFixture()
	now := time.Now()
	g := f.grants.roleGrants["rg-1"]
	g.DeletedAt = &now
	f.grants.roleGrants["rg-1"] = g

	set, err := f.svc.EffectiveSet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EffectiveSet failed: %v", err)
	}
	if _, ok := set[models.Grant{Module: "articles", Permission: "read"}]; ok {
		t.Error("soft-deleted role grant still effective")
	}
}
