package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub-service/internal/model"
	"taskhub-service/internal/policy"
)

func TestAddUser_QuotaReached(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)
	for i := 0; i < 4; i++ {
		env.createUser(t, &tenant.ID, fmt.Sprintf("user%d@demo.test", i), "pass123", model.RoleUser, true)
	}
	require.EqualValues(t, 5, env.count(t, &model.User{}, "tenant_id = ?", tenant.ID))

	rec := env.request(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/users", env.tokenFor(t, admin), map[string]interface{}{
		"email":     "overflow@demo.test",
		"password":  "pass123",
		"full_name": "One Too Many",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, policy.ReasonUserLimit, decode(t, rec).Message)

	// no row was created; the invariant count <= max_users holds
	assert.EqualValues(t, 5, env.count(t, &model.User{}, "tenant_id = ?", tenant.ID))
}

func TestAddUser_Success(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)

	rec := env.request(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/users", env.tokenFor(t, admin), map[string]interface{}{
		"email":     "new@demo.test",
		"password":  "pass123",
		"full_name": "New Member",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.User
	require.NoError(t, env.db.Where("email = ? AND tenant_id = ?", "new@demo.test", tenant.ID).First(&created).Error)
	assert.Equal(t, model.RoleUser, created.Role) // default role
	assert.True(t, created.IsActive)
	assert.EqualValues(t, 1, env.count(t, &model.AuditLog{}, "action = ? AND entity_id = ?", model.ActionCreateUser, created.ID))
}

func TestAddUser_DuplicateEmailInTenant(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)
	env.createUser(t, &tenant.ID, "taken@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/users", env.tokenFor(t, admin), map[string]interface{}{
		"email":     "taken@demo.test",
		"password":  "pass123",
		"full_name": "Copycat",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddUser_NonAdminForbidden(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/users", env.tokenFor(t, member), map[string]interface{}{
		"email":     "new@demo.test",
		"password":  "pass123",
		"full_name": "New Member",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddUser_CrossTenantAdminForbidden(t *testing.T) {
	env := setupTest(t)
	tenantA := env.createTenant(t, "A", "tenant-a", model.TenantStatusActive, 5, 3)
	tenantB := env.createTenant(t, "B", "tenant-b", model.TenantStatusActive, 5, 3)
	adminA := env.createUser(t, &tenantA.ID, "admin@a.test", "pass123", model.RoleTenantAdmin, true)

	rec := env.request(t, http.MethodPost, "/api/tenants/"+tenantB.ID+"/users", env.tokenFor(t, adminA), map[string]interface{}{
		"email":     "intruder@b.test",
		"password":  "pass123",
		"full_name": "Intruder",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.EqualValues(t, 0, env.count(t, &model.User{}, "tenant_id = ?", tenantB.ID))
}

func TestUpdateUser_SelfPrivilegedFieldsForbidden(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPut, "/api/users/"+member.ID, env.tokenFor(t, member), map[string]interface{}{
		"role": model.RoleTenantAdmin,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/users/"+member.ID, env.tokenFor(t, member), map[string]interface{}{
		"full_name": "Sneaky",
		"is_active": false,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// record unchanged
	var reloaded model.User
	require.NoError(t, env.db.First(&reloaded, "id = ?", member.ID).Error)
	assert.Equal(t, model.RoleUser, reloaded.Role)
	assert.True(t, reloaded.IsActive)
	assert.Equal(t, member.FullName, reloaded.FullName)
}

func TestUpdateUser_SelfFullName(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPut, "/api/users/"+member.ID, env.tokenFor(t, member), map[string]interface{}{
		"full_name": "Renamed Member",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded model.User
	require.NoError(t, env.db.First(&reloaded, "id = ?", member.ID).Error)
	assert.Equal(t, "Renamed Member", reloaded.FullName)
}

func TestUpdateUser_AdminSetsRoleAndStatus(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPut, "/api/users/"+member.ID, env.tokenFor(t, admin), map[string]interface{}{
		"role":      model.RoleTenantAdmin,
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded model.User
	require.NoError(t, env.db.First(&reloaded, "id = ?", member.ID).Error)
	assert.Equal(t, model.RoleTenantAdmin, reloaded.Role)
	assert.False(t, reloaded.IsActive)
}

func TestUpdateUser_ForeignMemberForbidden(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)
	other := env.createUser(t, &tenant.ID, "other@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodPut, "/api/users/"+other.ID, env.tokenFor(t, member), map[string]interface{}{
		"full_name": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteUser_SelfForbidden(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)

	rec := env.request(t, http.MethodDelete, "/api/users/"+admin.ID, env.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot delete yourself", decode(t, rec).Message)
	assert.EqualValues(t, 1, env.count(t, &model.User{}, "id = ?", admin.ID))
}

func TestDeleteUser_ByAdmin(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 5, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)
	member := env.createUser(t, &tenant.ID, "member@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodDelete, "/api/users/"+member.ID, env.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, env.count(t, &model.User{}, "id = ?", member.ID))
	assert.EqualValues(t, 1, env.count(t, &model.AuditLog{}, "action = ? AND entity_id = ?", model.ActionDeleteUser, member.ID))
}

func TestListUsers_CrossTenantForbidden(t *testing.T) {
	env := setupTest(t)
	tenantA := env.createTenant(t, "A", "tenant-a", model.TenantStatusActive, 5, 3)
	tenantB := env.createTenant(t, "B", "tenant-b", model.TenantStatusActive, 5, 3)
	memberA := env.createUser(t, &tenantA.ID, "member@a.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodGet, "/api/tenants/"+tenantB.ID+"/users", env.tokenFor(t, memberA), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/tenants/"+tenantA.ID+"/users", env.tokenFor(t, memberA), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListUsers_SearchAndRoleFilter(t *testing.T) {
	env := setupTest(t)
	tenant := env.createTenant(t, "Demo", "demo", model.TenantStatusActive, 10, 3)
	admin := env.createUser(t, &tenant.ID, "admin@demo.test", "pass123", model.RoleTenantAdmin, true)
	env.createUser(t, &tenant.ID, "alice@demo.test", "pass123", model.RoleUser, true)
	env.createUser(t, &tenant.ID, "bob@demo.test", "pass123", model.RoleUser, true)

	rec := env.request(t, http.MethodGet, "/api/tenants/"+tenant.ID+"/users?search=alice", env.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	users := resp.Data["users"].([]interface{})
	require.Len(t, users, 1)

	rec = env.request(t, http.MethodGet, "/api/tenants/"+tenant.ID+"/users?role=tenant_admin", env.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode(t, rec)
	users = resp.Data["users"].([]interface{})
	require.Len(t, users, 1)
}
