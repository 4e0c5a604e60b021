package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectStatusActive    = "active"
	ProjectStatusArchived  = "archived"
	ProjectStatusCompleted = "completed"
)

// Project belongs to exactly one tenant and counts against the tenant's
// project quota.
type Project struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID    string    `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedBy   string    `json:"created_by" gorm:"type:varchar(36);not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Creator *User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
