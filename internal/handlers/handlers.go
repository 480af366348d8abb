package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/config"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/middleware"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/revocation"
	"authgrid/api/internal/security"
	"authgrid/api/internal/service"
)

const adminRole = "admin"

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	db       *pgxpool.Pool
	cache    *redis.Client
	codec    *security.TokenCodec
	revoker  *revocation.Index
	users    *repository.UserRepository
	roles    *repository.RoleRepository
	sessions *repository.SessionRepository
	auth     *service.AuthService
	account  *service.UserService
	rbac     *service.RBACService
	perms    *service.PermissionService
	audits   *service.AuditService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, mailer *mail.Mailer, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository()
	roleRepo := repository.NewRoleRepository()
	moduleRepo := repository.NewModuleRepository()
	permRepo := repository.NewPermissionRepository()
	grantRepo := repository.NewGrantRepository()
	sessionRepo := repository.NewSessionRepository()
	resetRepo := repository.NewResetTokenRepository()
	auditRepo := repository.NewAuditRepository()

	hasher := security.NewHasher(cfg.Security.PasswordMinLength)
	codec := security.NewTokenCodec(cfg.Security.JWTSecret, cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL)
	revoker := revocation.NewIndex(cache)
	recorder := audit.NewRecorder(auditRepo, log)
	runTx := service.PgxTxRunner(db)

	authSvc := service.NewAuthService(service.AuthDeps{
		DB:       db,
		RunTx:    runTx,
		Users:    userRepo,
		Roles:    roleRepo,
		Sessions: sessionRepo,
		Resets:   resetRepo,
		Revoker:  revoker,
		Hasher:   hasher,
		Codec:    codec,
		Recorder: recorder,
		Mailer:   mailer,
		Config:   cfg,
		Log:      log,
	})
	accountSvc := service.NewUserService(service.UserDeps{
		DB:       db,
		RunTx:    runTx,
		Users:    userRepo,
		Roles:    roleRepo,
		Sessions: sessionRepo,
		Revoker:  revoker,
		Hasher:   hasher,
		Codec:    codec,
		Recorder: recorder,
		Log:      log,
	})
	rbacSvc := service.NewRBACService(service.RBACDeps{
		DB:       db,
		RunTx:    runTx,
		Users:    userRepo,
		Roles:    roleRepo,
		Modules:  moduleRepo,
		Perms:    permRepo,
		Grants:   grantRepo,
		Recorder: recorder,
		Log:      log,
	})
	permSvc := service.NewPermissionService(db, userRepo, roleRepo, moduleRepo, permRepo, grantRepo)
	auditSvc := service.NewAuditService(db, auditRepo)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		db:       db,
		cache:    cache,
		codec:    codec,
		revoker:  revoker,
		users:    userRepo,
		roles:    roleRepo,
		sessions: sessionRepo,
		auth:     authSvc,
		account:  accountSvc,
		rbac:     rbacSvc,
		perms:    permSvc,
		audits:   auditSvc,
	}
}

func (h HandlerSet) gate() gin.HandlerFunc {
	return middleware.Auth(h.db, h.codec, h.revoker, h.users, h.roles, h.sessions)
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		if h.cfg.Security.OpenRegistration {
			auth.POST("/register", h.RegisterUser)
		}
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/forgot", h.Forgot)
		auth.POST("/reset/verify", h.VerifyReset)
		auth.POST("/reset", h.Reset)

		account := v1.Group("/auth")
		account.Use(h.gate())
		account.GET("/me", h.Me)
		account.POST("/change-password", h.ChangePassword)
		account.GET("/sessions", h.ListSessions)
		account.DELETE("/sessions/:id", h.CloseSession)
	}

	admin := v1.Group("")
	admin.Use(h.gate(), middleware.RequireRole(adminRole))
	{
		admin.POST("/users", h.RegisterUser)
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PATCH("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.POST("/users/:id/grants", h.CreateUserGrant)
		admin.GET("/users/:id/grants", h.ListUserGrants)
		admin.DELETE("/user-grants/:id", h.DeleteUserGrant)

		admin.POST("/roles", h.CreateRole)
		admin.GET("/roles", h.ListRoles)
		admin.GET("/roles/:id", h.GetRole)
		admin.PATCH("/roles/:id", h.UpdateRole)
		admin.DELETE("/roles/:id", h.DeleteRole)
		admin.POST("/roles/:id/grants", h.CreateRoleGrant)
		admin.GET("/roles/:id/grants", h.ListRoleGrants)
		admin.DELETE("/role-grants/:id", h.DeleteRoleGrant)

		admin.POST("/modules", h.CreateModule)
		admin.GET("/modules", h.ListModules)
		admin.DELETE("/modules/:id", h.DeleteModule)

		admin.POST("/permissions", h.CreatePermission)
		admin.GET("/permissions", h.ListPermissions)
		admin.DELETE("/permissions/:id", h.DeletePermission)

		admin.GET("/audit", h.ListAudit)
	}
}
