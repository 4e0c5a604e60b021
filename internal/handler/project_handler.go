package handler

import (
	"errors"
	"net/http"
	"strings"
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

// ProjectHandler serves project CRUD scoped to the actor's tenant.
type ProjectHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewProjectHandler(db *gorm.DB, rec *audit.Recorder) *ProjectHandler {
	return &ProjectHandler{db: db, audit: rec}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Create adds a project, subject to the tenant's project quota. Same
// locking discipline as user creation: count and insert share one
// transaction over a locked tenant row.
func (h *ProjectHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)

	if actor.TenantID == "" {
		return fail(c, http.StatusForbidden, "Tenant context required")
	}

	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}
	if req.Status == "" {
		req.Status = model.ProjectStatusActive
	}
	if !model.ValidProjectStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "Invalid project status")
	}

	var project model.Project
	var quota policy.Decision

	defer prometheus.TrackDBOperation("insert")(time.Now())
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		var tenant model.Tenant
		if err := lockForUpdate(tx).First(&tenant, "id = ?", actor.TenantID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.Project{}).Where("tenant_id = ?", actor.TenantID).Count(&count).Error; err != nil {
			return err
		}
		if quota = policy.CheckQuota(&tenant, policy.ResourceProjects, count); !quota.Allowed {
			return errQuotaExceeded
		}

		project = model.Project{
			TenantID:    actor.TenantID,
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
			CreatedBy:   actor.UserID,
		}
		return tx.Create(&project).Error
	})
	switch {
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "Tenant not found")
	case errors.Is(txErr, errQuotaExceeded):
		prometheus.RecordQuotaDenied(policy.ResourceProjects)
		return fail(c, http.StatusForbidden, quota.Reason)
	case txErr != nil:
		log.Error("Failed to create project", zap.String("tenant_id", actor.TenantID), zap.Error(txErr))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("project", "create")
	h.audit.Record(actor.TenantID, actor.UserID, model.ActionCreateProject, "project", project.ID, c.RealIP())

	return ok(c, http.StatusCreated, project)
}

type projectWithStats struct {
	model.Project
	TaskCount          int64 `json:"task_count"`
	CompletedTaskCount int64 `json:"completed_task_count"`
}

// List returns the tenant's projects with task counts, filtered by
// optional search and status parameters.
func (h *ProjectHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)

	if actor.TenantID == "" {
		return fail(c, http.StatusForbidden, "Tenant context required")
	}

	page, limit, offset := pageParams(c, 20)

	query := h.db.Model(&model.Project{}).Where("tenant_id = ?", actor.TenantID)
	if search := c.QueryParam("search"); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	var projects []model.Project
	if err := query.Preload("Creator").Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	rows := make([]projectWithStats, 0, len(projects))
	for _, p := range projects {
		row := projectWithStats{Project: p}
		h.db.Model(&model.Task{}).Where("project_id = ?", p.ID).Count(&row.TaskCount)
		h.db.Model(&model.Task{}).Where("project_id = ? AND status = ?", p.ID, model.TaskStatusCompleted).Count(&row.CompletedTaskCount)
		rows = append(rows, row)
	}

	return ok(c, http.StatusOK, echo.Map{
		"projects":   rows,
		"pagination": newPagination(page, limit, total),
	})
}

type projectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// Update modifies a project. Creator or tenant admin only.
func (h *ProjectHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	projectID := c.Param("id")

	var project model.Project
	if err := h.db.Where("id = ? AND tenant_id = ?", projectID, actor.TenantID).First(&project).Error; err != nil {
		return fail(c, http.StatusNotFound, "Project not found")
	}

	if !policy.CanModifyEntity(actor, project.TenantID, project.CreatedBy) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	var req projectUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Status != nil && !model.ValidProjectStatus(*req.Status) {
		return fail(c, http.StatusBadRequest, "Invalid project status")
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		project.Status = *req.Status
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&project).Error; err != nil {
		log.Error("Failed to update project", zap.String("project_id", projectID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("project", "update")
	h.audit.Record(project.TenantID, actor.UserID, model.ActionUpdateProject, "project", project.ID, c.RealIP())

	return okMessage(c, http.StatusOK, "Project updated successfully", project)
}

// Delete removes a project and its tasks. Creator or tenant admin only.
func (h *ProjectHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	projectID := c.Param("id")

	var project model.Project
	if err := h.db.Where("id = ? AND tenant_id = ?", projectID, actor.TenantID).First(&project).Error; err != nil {
		return fail(c, http.StatusNotFound, "Project not found")
	}

	if !policy.CanModifyEntity(actor, project.TenantID, project.CreatedBy) {
		return fail(c, http.StatusForbidden, "Access denied")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if txErr != nil {
		log.Error("Failed to delete project", zap.String("project_id", projectID), zap.Error(txErr))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("project", "delete")
	h.audit.Record(project.TenantID, actor.UserID, model.ActionDeleteProject, "project", projectID, c.RealIP())

	return okMessage(c, http.StatusOK, "Project deleted successfully", nil)
}
