package model

// ValidTenantStatus reports whether s is a known tenant status.
func ValidTenantStatus(s string) bool {
	return s == TenantStatusActive || s == TenantStatusSuspended || s == TenantStatusTrial
}

// ValidPlan reports whether s is a known subscription plan.
func ValidPlan(s string) bool {
	return s == PlanFree || s == PlanPro || s == PlanEnterprise
}

// ValidRole reports whether s is a role assignable within a tenant.
// super_admin is excluded: it is never granted through the API.
func ValidRole(s string) bool {
	return s == RoleTenantAdmin || s == RoleUser
}

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool {
	return s == ProjectStatusActive || s == ProjectStatusArchived || s == ProjectStatusCompleted
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusCompleted
}

// ValidTaskPriority reports whether s is a known task priority.
func ValidTaskPriority(s string) bool {
	return s == PriorityLow || s == PriorityMedium || s == PriorityHigh
}
