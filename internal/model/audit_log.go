package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions
const (
	ActionRegisterTenant = "REGISTER_TENANT"
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionUpdateTenant   = "UPDATE_TENANT"
	ActionCreateUser     = "CREATE_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionDeleteUser     = "DELETE_USER"
	ActionCreateProject  = "CREATE_PROJECT"
	ActionUpdateProject  = "UPDATE_PROJECT"
	ActionDeleteProject  = "DELETE_PROJECT"
	ActionCreateTask     = "CREATE_TASK"
	ActionUpdateTask     = "UPDATE_TASK"
	ActionDeleteTask     = "DELETE_TASK"
)

// AuditLog is an append-only record of a mutating action. Rows are never
// updated or deleted, so only CreatedAt is tracked.
type AuditLog struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID   string    `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	UserID     string    `json:"user_id" gorm:"type:varchar(36);index"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(50)"`
	EntityID   string    `json:"entity_id" gorm:"type:varchar(36)"`
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(45)"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
