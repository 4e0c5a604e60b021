// Package seed bootstraps a development database with a super admin and
// a demo tenant. Enabled by SEED_DEMO; no-op once a super admin exists.
package seed

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub-service/internal/model"
)

// Run populates demo data. Idempotent: a second call does nothing.
func Run(db *gorm.DB, log *zap.Logger) error {
	var adminCount int64
	if err := db.Model(&model.User{}).Where("role = ?", model.RoleSuperAdmin).Count(&adminCount).Error; err != nil {
		return err
	}
	if adminCount > 0 {
		log.Info("Database already seeded")
		return nil
	}

	log.Info("Seeding database...")

	return db.Transaction(func(tx *gorm.DB) error {
		superAdminHash, err := bcrypt.GenerateFromPassword([]byte("Admin@123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		superAdmin := model.User{
			Email:        "superadmin@system.com",
			PasswordHash: string(superAdminHash),
			FullName:     "System Super Admin",
			Role:         model.RoleSuperAdmin,
			IsActive:     true,
		}
		if err := tx.Create(&superAdmin).Error; err != nil {
			return err
		}

		demoTenant := model.Tenant{
			Name:             "Demo Company",
			Subdomain:        "demo",
			Status:           model.TenantStatusActive,
			SubscriptionPlan: model.PlanPro,
			MaxUsers:         25,
			MaxProjects:      15,
		}
		if err := tx.Create(&demoTenant).Error; err != nil {
			return err
		}

		adminHash, err := bcrypt.GenerateFromPassword([]byte("Demo@123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := model.User{
			TenantID:     &demoTenant.ID,
			Email:        "admin@demo.com",
			PasswordHash: string(adminHash),
			FullName:     "Demo Admin",
			Role:         model.RoleTenantAdmin,
			IsActive:     true,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}

		userHash, err := bcrypt.GenerateFromPassword([]byte("User@123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		users := []model.User{
			{TenantID: &demoTenant.ID, Email: "user1@demo.com", PasswordHash: string(userHash), FullName: "Demo User 1", Role: model.RoleUser, IsActive: true},
			{TenantID: &demoTenant.ID, Email: "user2@demo.com", PasswordHash: string(userHash), FullName: "Demo User 2", Role: model.RoleUser, IsActive: true},
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}

		project := model.Project{
			TenantID:    demoTenant.ID,
			Name:        "Website Redesign",
			Description: "Revamp of the public site",
			Status:      model.ProjectStatusActive,
			CreatedBy:   admin.ID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		due := time.Now().AddDate(0, 0, 14)
		tasks := []model.Task{
			{TenantID: demoTenant.ID, ProjectID: project.ID, Title: "Draft new landing page", Status: model.TaskStatusTodo, Priority: model.PriorityHigh, DueDate: &due, AssignedTo: &users[0].ID},
			{TenantID: demoTenant.ID, ProjectID: project.ID, Title: "Migrate blog posts", Status: model.TaskStatusInProgress, Priority: model.PriorityMedium, AssignedTo: &users[1].ID},
			{TenantID: demoTenant.ID, ProjectID: project.ID, Title: "Collect stock photos", Status: model.TaskStatusTodo, Priority: model.PriorityLow},
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}

		log.Info("Seed data created",
			zap.String("tenant_id", demoTenant.ID),
			zap.String("subdomain", demoTenant.Subdomain))
		return nil
	})
}
