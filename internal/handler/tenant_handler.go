package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/model"
	"taskhub-service/internal/policy"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

// TenantHandler serves tenant reads, updates and the super-admin listing.
type TenantHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewTenantHandler(db *gorm.DB, rec *audit.Recorder) *TenantHandler {
	return &TenantHandler{db: db, audit: rec}
}

// Get returns a tenant with live usage totals. Members of the tenant and
// super admins only.
func (h *TenantHandler) Get(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)
	tenantID := c.Param("id")

	if !policy.CanAccessTenant(actor, tenantID) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	if err := h.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return fail(c, http.StatusNotFound, "Tenant not found")
	}

	var totalUsers, totalProjects, totalTasks int64
	h.db.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&totalUsers)
	h.db.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&totalProjects)
	h.db.Model(&model.Task{}).Where("tenant_id = ?", tenantID).Count(&totalTasks)

	return ok(c, http.StatusOK, echo.Map{
		"tenant": tenant,
		"stats": echo.Map{
			"total_users":    totalUsers,
			"total_projects": totalProjects,
			"total_tasks":    totalTasks,
		},
	})
}

type tenantUpdateRequest struct {
	Name             *string `json:"name"`
	Status           *string `json:"status"`
	SubscriptionPlan *string `json:"subscription_plan"`
	MaxUsers         *int    `json:"max_users"`
	MaxProjects      *int    `json:"max_projects"`
}

func (r *tenantUpdateRequest) fields() []string {
	var fields []string
	if r.Name != nil {
		fields = append(fields, "name")
	}
	if r.Status != nil {
		fields = append(fields, "status")
	}
	if r.SubscriptionPlan != nil {
		fields = append(fields, "subscription_plan")
	}
	if r.MaxUsers != nil {
		fields = append(fields, "max_users")
	}
	if r.MaxProjects != nil {
		fields = append(fields, "max_projects")
	}
	return fields
}

// Update applies a partial tenant update. The per-role field allowlist
// limits tenant admins to the name; super admins may change anything.
func (h *TenantHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	tenantID := c.Param("id")

	if !policy.IsSuperAdmin(actor) && !policy.IsTenantAdmin(actor, tenantID) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	var req tenantUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	if !policy.FieldsAllowed(actor, policy.EntityTenant, req.fields()) {
		return fail(c, http.StatusForbidden, "Tenant admin can only update name")
	}

	if req.Status != nil && !model.ValidTenantStatus(*req.Status) {
		return fail(c, http.StatusBadRequest, "Invalid tenant status")
	}
	if req.SubscriptionPlan != nil && !model.ValidPlan(*req.SubscriptionPlan) {
		return fail(c, http.StatusBadRequest, "Invalid subscription plan")
	}

	var tenant model.Tenant
	if err := h.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return fail(c, http.StatusNotFound, "Tenant not found")
	}

	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.Status != nil {
		tenant.Status = *req.Status
	}
	if req.SubscriptionPlan != nil {
		tenant.SubscriptionPlan = *req.SubscriptionPlan
	}
	if req.MaxUsers != nil {
		tenant.MaxUsers = *req.MaxUsers
	}
	if req.MaxProjects != nil {
		tenant.MaxProjects = *req.MaxProjects
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&tenant).Error; err != nil {
		log.Error("Failed to update tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("tenant", "update")
	h.audit.Record(tenant.ID, actor.UserID, model.ActionUpdateTenant, "tenant", tenant.ID, c.RealIP())

	return okMessage(c, http.StatusOK, "Tenant updated successfully", tenant)
}

type tenantWithCounts struct {
	model.Tenant
	TotalUsers    int64 `json:"total_users"`
	TotalProjects int64 `json:"total_projects"`
}

// List returns all tenants with usage counts. Super admin only.
func (h *TenantHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)

	if !policy.IsSuperAdmin(actor) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	page, limit, offset := pageParams(c, 10)

	query := h.db.Model(&model.Tenant{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if plan := c.QueryParam("subscription_plan"); plan != "" {
		query = query.Where("subscription_plan = ?", plan)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	var tenants []model.Tenant
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&tenants).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	rows := make([]tenantWithCounts, 0, len(tenants))
	for _, t := range tenants {
		row := tenantWithCounts{Tenant: t}
		h.db.Model(&model.User{}).Where("tenant_id = ?", t.ID).Count(&row.TotalUsers)
		h.db.Model(&model.Project{}).Where("tenant_id = ?", t.ID).Count(&row.TotalProjects)
		rows = append(rows, row)
	}

	return ok(c, http.StatusOK, echo.Map{
		"tenants":    rows,
		"pagination": newPagination(page, limit, total),
	})
}
