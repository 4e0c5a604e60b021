package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/model"
	"taskhub-service/pkg/jwtutil"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

// AuthHandler serves tenant registration, login, profile and logout.
type AuthHandler struct {
	db    *gorm.DB
	jwt   *jwtutil.Signer
	audit *audit.Recorder
}

func NewAuthHandler(db *gorm.DB, jwt *jwtutil.Signer, rec *audit.Recorder) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, audit: rec}
}

type registerTenantRequest struct {
	TenantName    string `json:"tenant_name"`
	Subdomain     string `json:"subdomain"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminFullName string `json:"admin_full_name"`
}

// RegisterTenant creates a tenant with free-tier quotas and its first
// tenant_admin user. Tenant, user and the audit entry are written in a
// single transaction: any failure leaves no partial rows behind.
func (h *AuthHandler) RegisterTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.TenantRegistrationCounter.Inc()

	var req registerTenantRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.TenantName == "" || req.Subdomain == "" || req.AdminEmail == "" || req.AdminPassword == "" || req.AdminFullName == "" {
		return fail(c, http.StatusBadRequest, "tenant_name, subdomain, admin_email, admin_password and admin_full_name are required")
	}

	// Fast-path conflict check before opening the transaction. The unique
	// index still backstops the race between two concurrent registrations.
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.Tenant
	if err := h.db.Where("subdomain = ?", req.Subdomain).First(&existing).Error; err == nil {
		return fail(c, http.StatusConflict, "Subdomain already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("Subdomain lookup failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Registration failed")
	}

	tenant := model.Tenant{
		Name:             req.TenantName,
		Subdomain:        req.Subdomain,
		Status:           model.TenantStatusActive,
		SubscriptionPlan: model.PlanFree,
		MaxUsers:         model.FreePlanMaxUsers,
		MaxProjects:      model.FreePlanMaxProjects,
	}
	var adminUser model.User

	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		adminUser = model.User{
			TenantID:     &tenant.ID,
			Email:        req.AdminEmail,
			PasswordHash: string(passwordHash),
			FullName:     req.AdminFullName,
			Role:         model.RoleTenantAdmin,
			IsActive:     true,
		}
		if err := tx.Create(&adminUser).Error; err != nil {
			return err
		}

		return h.audit.RecordTx(tx, tenant.ID, adminUser.ID,
			model.ActionRegisterTenant, "tenant", tenant.ID, c.RealIP())
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return fail(c, http.StatusConflict, "Subdomain already exists")
		}
		log.Error("Tenant registration failed", zap.String("subdomain", req.Subdomain), zap.Error(txErr))
		return fail(c, http.StatusInternalServerError, "Registration failed")
	}

	log.Info("Tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain))

	return okMessage(c, http.StatusCreated, "Tenant registered successfully", echo.Map{
		"tenant_id": tenant.ID,
		"subdomain": tenant.Subdomain,
		"admin_user": echo.Map{
			"id":        adminUser.ID,
			"email":     adminUser.Email,
			"full_name": adminUser.FullName,
			"role":      adminUser.Role,
		},
	})
}

type loginRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	TenantSubdomain string `json:"tenant_subdomain,omitempty"`
	TenantID        string `json:"tenant_id,omitempty"`
}

// Login resolves the tenant, verifies credentials and issues a session
// token. Unknown email and wrong password are indistinguishable to the
// caller. Without a tenant selector only a super admin can sign in.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	targetTenantID := req.TenantID
	if req.TenantSubdomain != "" {
		var tenant model.Tenant
		if err := h.db.Where("subdomain = ?", req.TenantSubdomain).First(&tenant).Error; err != nil {
			return fail(c, http.StatusNotFound, "Tenant not found")
		}
		if tenant.Status != model.TenantStatusActive {
			prometheus.RecordAuthError("tenant_suspended")
			return fail(c, http.StatusForbidden, "Tenant is suspended or inactive")
		}
		targetTenantID = tenant.ID
	} else if targetTenantID != "" {
		var tenant model.Tenant
		if err := h.db.First(&tenant, "id = ?", targetTenantID).Error; err != nil {
			return fail(c, http.StatusNotFound, "Tenant not found")
		}
		if tenant.Status != model.TenantStatusActive {
			prometheus.RecordAuthError("tenant_suspended")
			return fail(c, http.StatusForbidden, "Tenant is suspended or inactive")
		}
	}

	var user model.User
	var err error
	if targetTenantID != "" {
		err = h.db.Where("tenant_id = ? AND email = ?", targetTenantID, req.Email).First(&user).Error
	} else {
		// No tenant selector: only the cross-tenant super admin account
		// may authenticate this way.
		err = h.db.Where("tenant_id IS NULL AND email = ? AND role = ?", req.Email, model.RoleSuperAdmin).First(&user).Error
	}
	if err != nil {
		prometheus.RecordAuthError("invalid_credentials")
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		prometheus.RecordAuthError("invalid_credentials")
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if !user.IsActive {
		prometheus.RecordAuthError("account_inactive")
		return fail(c, http.StatusForbidden, "Account is inactive")
	}

	token, err := h.jwt.Generate(user.ID, targetTenantID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Token error")
	}

	h.audit.Record(targetTenantID, user.ID, model.ActionLogin, "user", user.ID, c.RealIP())

	log.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", targetTenantID),
		zap.String("role", user.Role))

	return ok(c, http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      user.Role,
			"tenant_id": user.TenantID,
		},
		"token":      token,
		"expires_in": int(h.jwt.Expiry().Seconds()),
	})
}

// Me returns the authenticated user together with its tenant.
func (h *AuthHandler) Me(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)

	var user model.User
	if err := h.db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	data := echo.Map{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
		"is_active": user.IsActive,
	}

	if user.TenantID != nil {
		var tenant model.Tenant
		if err := h.db.First(&tenant, "id = ?", *user.TenantID).Error; err == nil {
			data["tenant"] = echo.Map{
				"id":                tenant.ID,
				"name":              tenant.Name,
				"subdomain":         tenant.Subdomain,
				"subscription_plan": tenant.SubscriptionPlan,
				"max_users":         tenant.MaxUsers,
				"max_projects":      tenant.MaxProjects,
			}
		}
	}

	return ok(c, http.StatusOK, data)
}

// Logout records the event; tokens stay valid until expiry since no
// server-side session state is kept.
func (h *AuthHandler) Logout(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)

	h.audit.Record(actor.TenantID, actor.UserID, model.ActionLogout, "user", actor.UserID, c.RealIP())

	return okMessage(c, http.StatusOK, "Logged out successfully", nil)
}
