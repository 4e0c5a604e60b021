package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task statuses
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task priorities. Ordering is by explicit ordinal (see policy.PriorityRank),
// never by string comparison.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task lives inside a project. AssignedTo, when set, must reference a user
// in the same tenant as the task.
type Task struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID    string     `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	ProjectID   string     `json:"project_id" gorm:"type:varchar(36);index;not null"`
	Title       string     `json:"title" gorm:"type:varchar(200);not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	Priority    string     `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	DueDate     *time.Time `json:"due_date" gorm:"type:date"`
	AssignedTo  *string    `json:"assigned_to" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Assignee *User `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
