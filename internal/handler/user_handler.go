package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/model"
	"taskhub-service/internal/policy"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

// UserHandler serves user management inside a tenant.
type UserHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewUserHandler(db *gorm.DB, rec *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, audit: rec}
}

var (
	errQuotaExceeded = errors.New("quota exceeded")
	errEmailTaken    = errors.New("email taken")
)

type addUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Add creates a user inside the tenant, subject to the subscription
// quota. Count, quota check and insert run in one transaction with the
// tenant row locked, so concurrent creations cannot overshoot the limit.
func (h *UserHandler) Add(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	tenantID := c.Param("id")

	if !policy.IsSuperAdmin(actor) && !policy.IsTenantAdmin(actor, tenantID) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	var req addUserRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return fail(c, http.StatusBadRequest, "email, password and full_name are required")
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !model.ValidRole(req.Role) {
		return fail(c, http.StatusBadRequest, "Invalid role")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	var newUser model.User
	var quota policy.Decision

	defer prometheus.TrackDBOperation("insert")(time.Now())
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		var tenant model.Tenant
		if err := lockForUpdate(tx).First(&tenant, "id = ?", tenantID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
			return err
		}
		if quota = policy.CheckQuota(&tenant, policy.ResourceUsers, count); !quota.Allowed {
			return errQuotaExceeded
		}

		var existing model.User
		if err := tx.Where("tenant_id = ? AND email = ?", tenantID, req.Email).First(&existing).Error; err == nil {
			return errEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		newUser = model.User{
			TenantID:     &tenantID,
			Email:        req.Email,
			PasswordHash: string(passwordHash),
			FullName:     req.FullName,
			Role:         req.Role,
			IsActive:     true,
		}
		return tx.Create(&newUser).Error
	})
	switch {
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "Tenant not found")
	case errors.Is(txErr, errQuotaExceeded):
		prometheus.RecordQuotaDenied(policy.ResourceUsers)
		return fail(c, http.StatusForbidden, quota.Reason)
	case errors.Is(txErr, errEmailTaken), errors.Is(txErr, gorm.ErrDuplicatedKey):
		return fail(c, http.StatusConflict, "Email already exists in this tenant")
	case txErr != nil:
		log.Error("Failed to create user", zap.String("tenant_id", tenantID), zap.Error(txErr))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("user", "create")
	h.audit.Record(tenantID, actor.UserID, model.ActionCreateUser, "user", newUser.ID, c.RealIP())

	log.Info("User created",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", newUser.ID),
		zap.String("role", newUser.Role))

	return okMessage(c, http.StatusCreated, "User created successfully", newUser)
}

// List returns the tenant's users with optional search and role filters.
func (h *UserHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)
	tenantID := c.Param("id")

	if !policy.CanAccessTenant(actor, tenantID) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	page, limit, offset := pageParams(c, 50)

	query := h.db.Model(&model.User{}).Where("tenant_id = ?", tenantID)
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	var users []model.User
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	return ok(c, http.StatusOK, echo.Map{
		"users":      users,
		"pagination": newPagination(page, limit, total),
	})
}

type userUpdateRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (r *userUpdateRequest) fields() []string {
	var fields []string
	if r.FullName != nil {
		fields = append(fields, "full_name")
	}
	if r.Email != nil {
		fields = append(fields, "email")
	}
	if r.Role != nil {
		fields = append(fields, "role")
	}
	if r.IsActive != nil {
		fields = append(fields, "is_active")
	}
	return fields
}

// Update applies a partial user update. Non-admin users may only change
// their own full name; the allowlist blocks privileged fields.
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	userID := c.Param("id")

	var user model.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	targetTenantID := ""
	if user.TenantID != nil {
		targetTenantID = *user.TenantID
	}

	isSelf := actor.UserID == userID
	isAdmin := policy.IsSuperAdmin(actor) || policy.IsTenantAdmin(actor, targetTenantID)
	if !isSelf && !isAdmin {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	var req userUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	if !policy.FieldsAllowed(actor, policy.EntityUser, req.fields()) {
		return fail(c, http.StatusForbidden, "Not authorized to update role or status")
	}
	if req.Role != nil && !model.ValidRole(*req.Role) {
		return fail(c, http.StatusBadRequest, "Invalid role")
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fail(c, http.StatusConflict, "Email already exists in this tenant")
		}
		log.Error("Failed to update user", zap.String("user_id", userID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("user", "update")
	h.audit.Record(targetTenantID, actor.UserID, model.ActionUpdateUser, "user", user.ID, c.RealIP())

	return okMessage(c, http.StatusOK, "User updated successfully", echo.Map{
		"id":         user.ID,
		"full_name":  user.FullName,
		"role":       user.Role,
		"is_active":  user.IsActive,
		"updated_at": user.UpdatedAt,
	})
}

// Delete removes a user. Tenant admins only, and never themselves.
func (h *UserHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	userID := c.Param("id")

	var user model.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return fail(c, http.StatusNotFound, "User not found")
	}

	targetTenantID := ""
	if user.TenantID != nil {
		targetTenantID = *user.TenantID
	}

	if !policy.IsSuperAdmin(actor) && !policy.IsTenantAdmin(actor, targetTenantID) {
		return fail(c, http.StatusForbidden, "Access denied")
	}
	if actor.UserID == userID {
		return fail(c, http.StatusForbidden, "Cannot delete yourself")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&user).Error; err != nil {
		log.Error("Failed to delete user", zap.String("user_id", userID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("user", "delete")
	h.audit.Record(targetTenantID, actor.UserID, model.ActionDeleteUser, "user", userID, c.RealIP())

	return okMessage(c, http.StatusOK, "User deleted successfully", nil)
}
