package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleUser        = "user"
)

// User represents an account within a tenant. TenantID is nil only for
// super admins, who operate across tenants. Email is unique per tenant,
// not globally.
type User struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID     *string   `json:"tenant_id" gorm:"type:varchar(36);uniqueIndex:idx_users_tenant_email"`
	Email        string    `json:"email" gorm:"type:varchar(100);uniqueIndex:idx_users_tenant_email;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string    `json:"full_name" gorm:"type:varchar(100);not null"`
	Role         string    `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
