package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusTrial     = "trial"
)

// Subscription plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Free-tier quota defaults applied at registration
const (
	FreePlanMaxUsers    = 5
	FreePlanMaxProjects = 3
)

// Tenant represents an isolated organization account.
// This is the unit of data partitioning for the whole service: every
// user, project, task and audit entry hangs off a tenant ID.
type Tenant struct {
	ID               string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(100);not null"`
	Subdomain        string    `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	Status           string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	SubscriptionPlan string    `json:"subscription_plan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers         int       `json:"max_users" gorm:"not null;default:5"`
	MaxProjects      int       `json:"max_projects" gorm:"not null;default:3"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
