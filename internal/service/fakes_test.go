package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/config"
	"authgrid/api/internal/database"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// The fakes hold rows in maps and ignore the Queryer argument; passTx hands
// them a nil Queryer so service logic runs without a database.

func passTx(ctx context.Context, fn func(q database.Queryer) error) error {
	return fn(nil)
}

func nopSnapshot(rows map[string]map[string]any) audit.SnapshotFunc {
	return func(_ context.Context, _ database.Queryer, table, id string) (map[string]any, error) {
		if rows == nil {
			return nil, nil
		}
		snap, ok := rows[table+"/"+id]
		if !ok {
			return nil, nil
		}
		return snap, nil
	}
}

type fakeUsers struct {
	rows map[string]models.User
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{rows: map[string]models.User{}}
	for _, u := range users {
		f.rows[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, _ database.Queryer, user models.User) error {
	f.rows[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, _ database.Queryer, id string) (models.User, error) {
	u, ok := f.rows[id]
	if !ok || u.DeletedAt != nil {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, _ database.Queryer, email string) (models.User, error) {
	for _, u := range f.rows {
		if u.Email == email && u.DeletedAt == nil {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) List(_ context.Context, _ database.Queryer) ([]models.User, error) {
	var out []models.User
	for _, u := range f.rows {
		if u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, _ database.Queryer, user models.User) error {
	if _, ok := f.rows[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	f.rows[user.ID] = user
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, _ database.Queryer, id string, passwordHash []byte) error {
	u, ok := f.rows[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	f.rows[id] = u
	return nil
}

func (f *fakeUsers) SoftDelete(_ context.Context, _ database.Queryer, id string) error {
	u, ok := f.rows[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	f.rows[id] = u
	return nil
}

type fakeRoles struct {
	rows map[string]models.Role
}

func newFakeRoles(roles ...models.Role) *fakeRoles {
	f := &fakeRoles{rows: map[string]models.Role{}}
	for _, r := range roles {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeRoles) Create(_ context.Context, _ database.Queryer, role models.Role) error {
	f.rows[role.ID] = role
	return nil
}

func (f *fakeRoles) GetByID(_ context.Context, _ database.Queryer, id string) (models.Role, error) {
	r, ok := f.rows[id]
	if !ok || r.DeletedAt != nil {
		return models.Role{}, repository.ErrRoleNotFound
	}
	return r, nil
}

func (f *fakeRoles) FindByName(_ context.Context, _ database.Queryer, name string) (models.Role, error) {
	for _, r := range f.rows {
		if r.DeletedAt == nil && strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return models.Role{}, repository.ErrRoleNotFound
}

func (f *fakeRoles) List(_ context.Context, _ database.Queryer) ([]models.Role, error) {
	var out []models.Role
	for _, r := range f.rows {
		if r.DeletedAt == nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoles) Update(_ context.Context, _ database.Queryer, role models.Role) error {
	if _, ok := f.rows[role.ID]; !ok {
		return repository.ErrRoleNotFound
	}
	f.rows[role.ID] = role
	return nil
}

func (f *fakeRoles) SoftDelete(_ context.Context, _ database.Queryer, id string) error {
	r, ok := f.rows[id]
	if !ok || r.DeletedAt != nil {
		return repository.ErrRoleNotFound
	}
	now := time.Now()
	r.DeletedAt = &now
	f.rows[id] = r
	return nil
}

type fakeModules struct {
	rows map[string]models.Module
}

func newFakeModules(modules ...models.Module) *fakeModules {
	f := &fakeModules{rows: map[string]models.Module{}}
	for _, m := range modules {
		f.rows[m.ID] = m
	}
	return f
}

func (f *fakeModules) Create(_ context.Context, _ database.Queryer, m models.Module) error {
	f.rows[m.ID] = m
	return nil
}

func (f *fakeModules) GetByID(_ context.Context, _ database.Queryer, id string) (models.Module, error) {
	m, ok := f.rows[id]
	if !ok || m.DeletedAt != nil {
		return models.Module{}, repository.ErrModuleNotFound
	}
	return m, nil
}

func (f *fakeModules) List(_ context.Context, _ database.Queryer) ([]models.Module, error) {
	var out []models.Module
	for _, m := range f.rows {
		if m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeModules) Update(_ context.Context, _ database.Queryer, m models.Module) error {
	if _, ok := f.rows[m.ID]; !ok {
		return repository.ErrModuleNotFound
	}
	f.rows[m.ID] = m
	return nil
}

func (f *fakeModules) SoftDelete(_ context.Context, _ database.Queryer, id string) error {
	m, ok := f.rows[id]
	if !ok || m.DeletedAt != nil {
		return repository.ErrModuleNotFound
	}
	now := time.Now()
	m.DeletedAt = &now
	f.rows[id] = m
	return nil
}

type fakePerms struct {
	rows map[string]models.Permission
}

func newFakePerms(perms ...models.Permission) *fakePerms {
	f := &fakePerms{rows: map[string]models.Permission{}}
	for _, p := range perms {
		f.rows[p.ID] = p
	}
	return f
}

func (f *fakePerms) Create(_ context.Context, _ database.Queryer, p models.Permission) error {
	f.rows[p.ID] = p
	return nil
}

func (f *fakePerms) GetByID(_ context.Context, _ database.Queryer, id string) (models.Permission, error) {
	p, ok := f.rows[id]
	if !ok || p.DeletedAt != nil {
		return models.Permission{}, repository.ErrPermissionNotFound
	}
	return p, nil
}

func (f *fakePerms) List(_ context.Context, _ database.Queryer) ([]models.Permission, error) {
	var out []models.Permission
	for _, p := range f.rows {
		if p.DeletedAt == nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePerms) Update(_ context.Context, _ database.Queryer, p models.Permission) error {
	if _, ok := f.rows[p.ID]; !ok {
		return repository.ErrPermissionNotFound
	}
	f.rows[p.ID] = p
	return nil
}

func (f *fakePerms) SoftDelete(_ context.Context, _ database.Queryer, id string) error {
	p, ok := f.rows[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrPermissionNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	f.rows[id] = p
	return nil
}

type fakeGrants struct {
	roleGrants map[string]models.RoleGrant
	userGrants map[string]models.UserGrant
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{
		roleGrants: map[string]models.RoleGrant{},
		userGrants: map[string]models.UserGrant{},
	}
}

func (f *fakeGrants) CreateRoleGrant(_ context.Context, _ database.Queryer, g models.RoleGrant) error {
	f.roleGrants[g.ID] = g
	return nil
}

func (f *fakeGrants) CreateUserGrant(_ context.Context, _ database.Queryer, g models.UserGrant) error {
	f.userGrants[g.ID] = g
	return nil
}

func (f *fakeGrants) GetRoleGrant(_ context.Context, _ database.Queryer, id string) (models.RoleGrant, error) {
	g, ok := f.roleGrants[id]
	if !ok || g.DeletedAt != nil {
		return models.RoleGrant{}, repository.ErrGrantNotFound
	}
	return g, nil
}

func (f *fakeGrants) GetUserGrant(_ context.Context, _ database.Queryer, id string) (models.UserGrant, error) {
	g, ok := f.userGrants[id]
	if !ok || g.DeletedAt != nil {
		return models.UserGrant{}, repository.ErrGrantNotFound
	}
	return g, nil
}

func (f *fakeGrants) ListByRole(_ context.Context, _ database.Queryer, roleID string) ([]models.RoleGrant, error) {
	var out []models.RoleGrant
	for _, g := range f.roleGrants {
		if g.RoleID == roleID && g.DeletedAt == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrants) ListByUser(_ context.Context, _ database.Queryer, userID string) ([]models.UserGrant, error) {
	var out []models.UserGrant
	for _, g := range f.userGrants {
		if g.UserID == userID && g.DeletedAt == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrants) SoftDeleteRoleGrant(_ context.Context, _ database.Queryer, id string) error {
	g, ok := f.roleGrants[id]
	if !ok || g.DeletedAt != nil {
		return repository.ErrGrantNotFound
	}
	now := time.Now()
	g.DeletedAt = &now
	f.roleGrants[id] = g
	return nil
}

func (f *fakeGrants) SoftDeleteUserGrant(_ context.Context, _ database.Queryer, id string) error {
	g, ok := f.userGrants[id]
	if !ok || g.DeletedAt != nil {
		return repository.ErrGrantNotFound
	}
	now := time.Now()
	g.DeletedAt = &now
	f.userGrants[id] = g
	return nil
}

type fakeSessions struct {
	rows map[string]models.Session
	logs map[string][]models.SessionLog
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		rows: map[string]models.Session{},
		logs: map[string][]models.SessionLog{},
	}
}

func (f *fakeSessions) Create(_ context.Context, _ database.Queryer, s models.Session) error {
	s.Active = true
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.LastUsedAt.IsZero() {
		s.LastUsedAt = s.CreatedAt
	}
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, _ database.Queryer, id string) (models.Session, error) {
	s, ok := f.rows[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) GetActiveByID(_ context.Context, _ database.Queryer, id string) (models.Session, error) {
	s, ok := f.rows[id]
	if !ok || !s.Active {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListActiveByUser(_ context.Context, _ database.Queryer, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.rows {
		if s.UserID == userID && s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSessions) RotateAccessToken(_ context.Context, _ database.Queryer, sessionID, accessTokenID string) error {
	s, ok := f.rows[sessionID]
	if !ok || !s.Active {
		return repository.ErrSessionNotFound
	}
	s.AccessTokenID = accessTokenID
	s.LastUsedAt = time.Now()
	f.rows[sessionID] = s
	return nil
}

func (f *fakeSessions) Close(_ context.Context, _ database.Queryer, sessionID string) error {
	s, ok := f.rows[sessionID]
	if !ok {
		return nil
	}
	now := time.Now()
	s.Active = false
	s.LastLogoutAt = &now
	f.rows[sessionID] = s
	return nil
}

func (f *fakeSessions) Touch(_ context.Context, _ database.Queryer, sessionID string) error {
	s, ok := f.rows[sessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.LastUsedAt = time.Now()
	f.rows[sessionID] = s
	return nil
}

func (f *fakeSessions) StalestActiveByUser(ctx context.Context, q database.Queryer, userID string, keep int) ([]models.Session, error) {
	live, _ := f.ListActiveByUser(ctx, q, userID)
	sort.Slice(live, func(i, j int) bool { return live[i].LastUsedAt.After(live[j].LastUsedAt) })
	if len(live) <= keep {
		return nil, nil
	}
	return live[keep:], nil
}

func (f *fakeSessions) AppendLog(_ context.Context, _ database.Queryer, entry models.SessionLog) error {
	if entry.IssuedAt.IsZero() {
		entry.IssuedAt = time.Now()
	}
	f.logs[entry.SessionID] = append(f.logs[entry.SessionID], entry)
	return nil
}

func (f *fakeSessions) RevokeLogs(_ context.Context, _ database.Queryer, sessionID string) error {
	now := time.Now()
	entries := f.logs[sessionID]
	for i := range entries {
		if entries[i].RevokedAt == nil {
			entries[i].RevokedAt = &now
		}
	}
	f.logs[sessionID] = entries
	return nil
}

type fakeResets struct {
	rows map[string]models.ResetToken
}

func newFakeResets() *fakeResets {
	return &fakeResets{rows: map[string]models.ResetToken{}}
}

func (f *fakeResets) Upsert(_ context.Context, _ database.Queryer, t models.ResetToken) error {
	for id, existing := range f.rows {
		if existing.UserID == t.UserID {
			delete(f.rows, id)
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	f.rows[t.ID] = t
	return nil
}

func (f *fakeResets) ListLive(_ context.Context, _ database.Queryer) ([]models.ResetToken, error) {
	var out []models.ResetToken
	now := time.Now()
	for _, t := range f.rows {
		if t.Live(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeResets) MarkUsed(_ context.Context, _ database.Queryer, id string) error {
	t, ok := f.rows[id]
	if !ok || !t.Live(time.Now()) {
		return repository.ErrResetTokenNotFound
	}
	t.Used = true
	f.rows[id] = t
	return nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	fail    bool
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: map[string]time.Time{}}
}

func (f *fakeRevoker) Revoke(_ context.Context, tokenID string, tokenExpiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("revocation store down")
	}
	f.revoked[tokenID] = tokenExpiry
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return true, errors.New("revocation store down")
	}
	_, ok := f.revoked[tokenID]
	return ok, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeMailer) Enqueue(msg mail.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeMailer) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeSink records audit entries in memory, optionally failing every insert.
type fakeSink struct {
	entries []models.AuditEntry
	fail    bool
}

func (f *fakeSink) Insert(_ context.Context, _ database.Queryer, e models.AuditEntry) error {
	if f.fail {
		return errors.New("audit table unavailable")
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeSink) byAction(action models.AuditAction) []models.AuditEntry {
	var out []models.AuditEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

var testHashParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.JWTAccessTTL = 15 * time.Minute
	cfg.Security.JWTRefreshTTL = 7 * 24 * time.Hour
	cfg.Security.PasswordMinLength = 8
	cfg.Security.ResetTokenTTL = 30 * time.Minute
	cfg.Security.MaxSessions = 3
	cfg.Frontend.BaseURL = "https://app.example.com"
	cfg.Frontend.ResetPath = "/reset"
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
