package service

import (
	"context"
	"errors"
	"testing"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/models"
)

type rbacHarness struct {
	svc     *RBACService
	users   *fakeUsers
	roles   *fakeRoles
	modules *fakeModules
	perms   *fakePerms
	grants  *fakeGrants
	sink    *fakeSink
}

func newRBACHarness(t *testing.T) *rbacHarness {
	t.Helper()

	h := &rbacHarness{
		users:   newFakeUsers(),
		roles:   newFakeRoles(),
		modules: newFakeModules(),
		perms:   newFakePerms(),
		grants:  newFakeGrants(),
		sink:    &fakeSink{},
	}
	h.svc = NewRBACService(RBACDeps{
		RunTx:    passTx,
		Users:    h.users,
		Roles:    h.roles,
		Modules:  h.modules,
		Perms:    h.perms,
		Grants:   h.grants,
		Recorder: audit.NewRecorder(h.sink, testLogger()),
		Snapshot: nopSnapshot(nil),
		Log:      testLogger(),
	})
	return h
}

func TestCreateRoleWritesAudit(t *testing.T) {
	h := newRBACHarness(t)

	role, err := h.svc.CreateRole(context.Background(), "editor", audit.Meta{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if role.Status != models.RoleStatusActive {
		t.Errorf("status = %q, want active", role.Status)
	}

	entries := h.sink.byAction(models.AuditActionCreate)
	if len(entries) != 1 {
		t.Fatalf("create audit entries = %d, want 1", len(entries))
	}
	if entries[0].TargetTable != "roles" || entries[0].TargetID != role.ID {
		t.Errorf("audit target = %s/%s, want roles/%s", entries[0].TargetTable, entries[0].TargetID, role.ID)
	}
	if entries[0].ActorID != "admin-1" {
		t.Errorf("actor = %q, want admin-1", entries[0].ActorID)
	}
}

func TestCreateRoleDuplicateNameCaseInsensitive(t *testing.T) {
	h := newRBACHarness(t)

	if _, err := h.svc.CreateRole(context.Background(), "Editor", audit.Meta{}); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if _, err := h.svc.CreateRole(context.Background(), "editor", audit.Meta{}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestCreateRoleFailsWhenAuditWriteFails(t *testing.T) {
	h := newRBACHarness(t)
	h.sink.fail = true

	if _, err := h.svc.CreateRole(context.Background(), "editor", audit.Meta{}); !errors.Is(err, audit.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
}

func TestUpdateRoleRecordsOldAndNew(t *testing.T) {
	h := newRBACHarness(t)

	role, err := h.svc.CreateRole(context.Background(), "editor", audit.Meta{})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	updated, err := h.svc.UpdateRole(context.Background(), role.ID, UpdateRoleInput{Status: models.RoleStatusInactive}, audit.Meta{})
	if err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if updated.Status != models.RoleStatusInactive {
		t.Errorf("status = %q, want inactive", updated.Status)
	}
	if got := len(h.sink.byAction(models.AuditActionUpdate)); got != 1 {
		t.Errorf("update audit entries = %d, want 1", got)
	}
}

func TestUpdateRoleBadStatus(t *testing.T) {
	h := newRBACHarness(t)
	role, _ := h.svc.CreateRole(context.Background(), "editor", audit.Meta{})

	if _, err := h.svc.UpdateRole(context.Background(), role.ID, UpdateRoleInput{Status: "frozen"}, audit.Meta{}); !errors.Is(err, ErrBadInput) {
		t.Fatalf("err = %v, want ErrBadInput", err)
	}
}

func TestDeleteRoleThenNotFound(t *testing.T) {
	h := newRBACHarness(t)
	role, _ := h.svc.CreateRole(context.Background(), "editor", audit.Meta{})

	if err := h.svc.DeleteRole(context.Background(), role.ID, audit.Meta{}); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}
	if _, err := h.svc.GetRole(context.Background(), role.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted role still resolves: %v", err)
	}
	if err := h.svc.DeleteRole(context.Background(), role.ID, audit.Meta{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	if got := len(h.sink.byAction(models.AuditActionDelete)); got != 1 {
		t.Errorf("delete audit entries = %d, want 1", got)
	}
}

func TestCreateModuleAndPermissionDeduplicate(t *testing.T) {
	h := newRBACHarness(t)

	if _, err := h.svc.CreateModule(context.Background(), "Articles", audit.Meta{}); err != nil {
		t.Fatalf("CreateModule failed: %v", err)
	}
	if _, err := h.svc.CreateModule(context.Background(), "articles", audit.Meta{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("module: err = %v, want ErrDuplicate", err)
	}

	if _, err := h.svc.CreatePermission(context.Background(), "read", audit.Meta{}); err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}
	if _, err := h.svc.CreatePermission(context.Background(), "READ", audit.Meta{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("permission: err = %v, want ErrDuplicate", err)
	}
}

func (h *rbacHarness) seedTriple(t *testing.T) (models.Role, models.Module, models.Permission) {
	t.Helper()
	role, err := h.svc.CreateRole(context.Background(), "editor", audit.Meta{})
	if err != nil {
		t.Fatalf("seed role: %v", err)
	}
	mod, err := h.svc.CreateModule(context.Background(), "articles", audit.Meta{})
	if err != nil {
		t.Fatalf("seed module: %v", err)
	}
	perm, err := h.svc.CreatePermission(context.Background(), "read", audit.Meta{})
	if err != nil {
		t.Fatalf("seed permission: %v", err)
	}
	return role, mod, perm
}

func TestCreateRoleGrant(t *testing.T) {
	h := newRBACHarness(t)
	role, mod, perm := h.seedTriple(t)

	grant, err := h.svc.CreateRoleGrant(context.Background(), role.ID, GrantInput{ModuleID: mod.ID, PermissionID: perm.ID}, audit.Meta{})
	if err != nil {
		t.Fatalf("CreateRoleGrant failed: %v", err)
	}

	listed, err := h.svc.ListRoleGrants(context.Background(), role.ID)
	if err != nil || len(listed) != 1 || listed[0].ID != grant.ID {
		t.Fatalf("ListRoleGrants = %v, %v", listed, err)
	}

	// same triple again
	if _, err := h.svc.CreateRoleGrant(context.Background(), role.ID, GrantInput{ModuleID: mod.ID, PermissionID: perm.ID}, audit.Meta{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestCreateRoleGrantValidatesReferences(t *testing.T) {
	h := newRBACHarness(t)
	role, mod, perm := h.seedTriple(t)

	cases := []struct {
		name   string
		roleID string
		in     GrantInput
	}{
		{"missing role", "nope", GrantInput{ModuleID: mod.ID, PermissionID: perm.ID}},
		{"missing module", role.ID, GrantInput{ModuleID: "nope", PermissionID: perm.ID}},
		{"missing permission", role.ID, GrantInput{ModuleID: mod.ID, PermissionID: "nope"}},
	}
	for _, tc := range cases {
		if _, err := h.svc.CreateRoleGrant(context.Background(), tc.roleID, tc.in, audit.Meta{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", tc.name, err)
		}
	}
}

func TestUserGrantLifecycle(t *testing.T) {
	h := newRBACHarness(t)
	_, mod, perm := h.seedTriple(t)
	h.users.rows["user-1"] = models.User{ID: "user-1", Email: "u@example.com", Status: models.UserStatusActive}

	grant, err := h.svc.CreateUserGrant(context.Background(), "user-1", GrantInput{ModuleID: mod.ID, PermissionID: perm.ID}, audit.Meta{})
	if err != nil {
		t.Fatalf("CreateUserGrant failed: %v", err)
	}

	if err := h.svc.DeleteUserGrant(context.Background(), grant.ID, audit.Meta{}); err != nil {
		t.Fatalf("DeleteUserGrant failed: %v", err)
	}
	listed, _ := h.svc.ListUserGrants(context.Background(), "user-1")
	if len(listed) != 0 {
		t.Errorf("grants after delete = %d, want 0", len(listed))
	}
	if err := h.svc.DeleteUserGrant(context.Background(), grant.ID, audit.Meta{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}
