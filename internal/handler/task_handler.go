package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/model"
	"taskhub-service/pkg/logger"
	"taskhub-service/prometheus"
)

// Tasks are ordered by explicit priority ordinal, never lexically.
const taskPriorityOrder = "CASE priority WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END DESC, due_date ASC"

const dueDateLayout = "2006-01-02"

// TaskHandler serves task CRUD within the actor's tenant.
type TaskHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewTaskHandler(db *gorm.DB, rec *audit.Recorder) *TaskHandler {
	return &TaskHandler{db: db, audit: rec}
}

// assigneeInTenant verifies the assignee belongs to the given tenant.
func (h *TaskHandler) assigneeInTenant(userID, tenantID string) bool {
	var assignee model.User
	err := h.db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&assignee).Error
	return err == nil
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	AssignedTo  *string `json:"assigned_to"`
}

// Create adds a task to a project in the actor's tenant. The assignee,
// when given, must belong to the same tenant.
func (h *TaskHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	projectID := c.Param("id")

	if actor.TenantID == "" {
		return fail(c, http.StatusForbidden, "Tenant context required")
	}

	var project model.Project
	if err := h.db.Where("id = ? AND tenant_id = ?", projectID, actor.TenantID).First(&project).Error; err != nil {
		return fail(c, http.StatusNotFound, "Project not found")
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !model.ValidTaskPriority(req.Priority) {
		return fail(c, http.StatusBadRequest, "Invalid priority")
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.Parse(dueDateLayout, *req.DueDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		}
		dueDate = &parsed
	}

	if req.AssignedTo != nil && *req.AssignedTo != "" {
		if !h.assigneeInTenant(*req.AssignedTo, actor.TenantID) {
			return fail(c, http.StatusBadRequest, "Assigned user does not belong to this tenant")
		}
	} else {
		req.AssignedTo = nil
	}

	task := model.Task{
		TenantID:    actor.TenantID,
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatusTodo,
		Priority:    req.Priority,
		DueDate:     dueDate,
		AssignedTo:  req.AssignedTo,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&task).Error; err != nil {
		log.Error("Failed to create task", zap.String("project_id", projectID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("task", "create")
	h.audit.Record(actor.TenantID, actor.UserID, model.ActionCreateTask, "task", task.ID, c.RealIP())

	return ok(c, http.StatusCreated, task)
}

// List returns a project's tasks ordered by priority ordinal then due
// date, with optional status/priority/assignee/search filters.
func (h *TaskHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)
	projectID := c.Param("id")

	if actor.TenantID == "" {
		return fail(c, http.StatusForbidden, "Tenant context required")
	}

	var project model.Project
	if err := h.db.Where("id = ? AND tenant_id = ?", projectID, actor.TenantID).First(&project).Error; err != nil {
		return fail(c, http.StatusNotFound, "Project not found")
	}

	page, limit, offset := pageParams(c, 50)

	query := h.db.Model(&model.Task{}).Where("project_id = ? AND tenant_id = ?", projectID, actor.TenantID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if assignedTo := c.QueryParam("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}
	if search := c.QueryParam("search"); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	var tasks []model.Task
	if err := query.Preload("Assignee").Order(taskPriorityOrder).Limit(limit).Offset(offset).Find(&tasks).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	return ok(c, http.StatusOK, echo.Map{
		"tasks":      tasks,
		"pagination": newPagination(page, limit, total),
	})
}

type taskUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"due_date"`
	AssignedTo  *string `json:"assigned_to"`
}

// Update modifies a task. An explicit empty assigned_to unassigns it.
func (h *TaskHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	taskID := c.Param("id")

	var task model.Task
	if err := h.db.Where("id = ? AND tenant_id = ?", taskID, actor.TenantID).First(&task).Error; err != nil {
		return fail(c, http.StatusNotFound, "Task not found")
	}

	var req taskUpdateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Status != nil && !model.ValidTaskStatus(*req.Status) {
		return fail(c, http.StatusBadRequest, "Invalid task status")
	}
	if req.Priority != nil && !model.ValidTaskPriority(*req.Priority) {
		return fail(c, http.StatusBadRequest, "Invalid priority")
	}

	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			task.AssignedTo = nil
		} else {
			if !h.assigneeInTenant(*req.AssignedTo, actor.TenantID) {
				return fail(c, http.StatusBadRequest, "Assigned user does not belong to this tenant")
			}
			task.AssignedTo = req.AssignedTo
		}
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate = nil
		} else {
			parsed, err := time.Parse(dueDateLayout, *req.DueDate)
			if err != nil {
				return fail(c, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			}
			task.DueDate = &parsed
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&task).Error; err != nil {
		log.Error("Failed to update task", zap.String("task_id", taskID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	h.db.Preload("Assignee").First(&task, "id = ?", task.ID)

	prometheus.RecordEntityOperation("task", "update")
	h.audit.Record(actor.TenantID, actor.UserID, model.ActionUpdateTask, "task", task.ID, c.RealIP())

	return okMessage(c, http.StatusOK, "Task updated successfully", task)
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus is the lightweight status-only transition endpoint.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	actor, _ := middleware.ActorFromContext(c)
	taskID := c.Param("id")

	var task model.Task
	if err := h.db.Where("id = ? AND tenant_id = ?", taskID, actor.TenantID).First(&task).Error; err != nil {
		return fail(c, http.StatusNotFound, "Task not found")
	}

	var req taskStatusRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request")
	}
	if req.Status == "" {
		return fail(c, http.StatusBadRequest, "Status is required")
	}
	if !model.ValidTaskStatus(req.Status) {
		return fail(c, http.StatusBadRequest, "Invalid task status")
	}

	task.Status = req.Status
	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&task).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("task", "update_status")

	return ok(c, http.StatusOK, echo.Map{
		"id":         task.ID,
		"status":     task.Status,
		"updated_at": task.UpdatedAt,
	})
}

// Delete removes a task from the actor's tenant.
func (h *TaskHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	actor, _ := middleware.ActorFromContext(c)
	taskID := c.Param("id")

	var task model.Task
	if err := h.db.Where("id = ? AND tenant_id = ?", taskID, actor.TenantID).First(&task).Error; err != nil {
		return fail(c, http.StatusNotFound, "Task not found")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&task).Error; err != nil {
		log.Error("Failed to delete task", zap.String("task_id", taskID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Server error")
	}

	prometheus.RecordEntityOperation("task", "delete")
	h.audit.Record(actor.TenantID, actor.UserID, model.ActionDeleteTask, "task", taskID, c.RealIP())

	return okMessage(c, http.StatusOK, "Task deleted successfully", nil)
}
