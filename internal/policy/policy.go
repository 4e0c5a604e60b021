// Package policy holds the authorization and quota predicates for the
// service. Every function here is pure: it operates on already-loaded
// records, performs no I/O, and signals denial through return values,
// never through errors. Handlers translate denials to HTTP statuses.
package policy

import (
	"taskhub-service/internal/model"
)

// Actor is the authenticated principal extracted from a verified token.
// TenantID is empty for super admins.
type Actor struct {
	UserID   string
	TenantID string
	Role     string
}

// Entity kinds used by FieldsAllowed.
const (
	EntityTenant = "tenant"
	EntityUser   = "user"
)

// Resource kinds used by CheckQuota.
const (
	ResourceUsers    = "users"
	ResourceProjects = "projects"
)

// Quota denial reasons, surfaced verbatim in API responses.
const (
	ReasonUserLimit    = "Subscription user limit reached"
	ReasonProjectLimit = "Subscription project limit reached"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// IsSuperAdmin reports whether the actor operates across tenants.
func IsSuperAdmin(a Actor) bool {
	return a.Role == model.RoleSuperAdmin
}

// IsTenantAdmin reports whether the actor administers the given tenant.
func IsTenantAdmin(a Actor, tenantID string) bool {
	return a.Role == model.RoleTenantAdmin && a.TenantID == tenantID
}

// CanAccessTenant reports whether the actor may read data belonging to
// the given tenant: super admins always, everyone else only their own.
func CanAccessTenant(a Actor, tenantID string) bool {
	if IsSuperAdmin(a) {
		return true
	}
	return a.TenantID == tenantID
}

// CanModifyEntity reports whether the actor may mutate an entity owned by
// entityTenantID and created by creatorID. Creators may touch their own
// entities, tenant admins anything in their tenant, super admins anything.
func CanModifyEntity(a Actor, entityTenantID, creatorID string) bool {
	if IsSuperAdmin(a) {
		return true
	}
	if a.TenantID != entityTenantID {
		return false
	}
	return a.Role == model.RoleTenantAdmin || a.UserID == creatorID
}

// Per-role field allowlists. A missing key means no fields are writable
// for that role/entity pair; super admins bypass the table entirely.
var fieldAllowlist = map[string]map[string]map[string]bool{
	model.RoleUser: {
		EntityUser: {"full_name": true},
	},
	model.RoleTenantAdmin: {
		EntityTenant: {"name": true},
		EntityUser:   {"full_name": true, "email": true, "role": true, "is_active": true},
	},
}

// FieldsAllowed reports whether every requested field is writable by the
// actor on the given entity kind. Empty requests are trivially allowed.
func FieldsAllowed(a Actor, entity string, fields []string) bool {
	if IsSuperAdmin(a) {
		return true
	}
	allowed := fieldAllowlist[a.Role][entity]
	for _, f := range fields {
		if !allowed[f] {
			return false
		}
	}
	return true
}

// CheckQuota decides whether a tenant may create one more resource of the
// given kind, given the live count already persisted.
func CheckQuota(t *model.Tenant, kind string, currentCount int64) Decision {
	switch kind {
	case ResourceUsers:
		if currentCount >= int64(t.MaxUsers) {
			return deny(ReasonUserLimit)
		}
	case ResourceProjects:
		if currentCount >= int64(t.MaxProjects) {
			return deny(ReasonProjectLimit)
		}
	}
	return allow
}

// PriorityRank maps task priorities onto an explicit ordinal so ordering
// never depends on lexical comparison: high=2, medium=1, low=0.
func PriorityRank(priority string) int {
	switch priority {
	case model.PriorityHigh:
		return 2
	case model.PriorityMedium:
		return 1
	default:
		return 0
	}
}
