package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskhub-service/internal/audit"
	"taskhub-service/internal/middleware"
	"taskhub-service/internal/model"
	"taskhub-service/pkg/config"
	"taskhub-service/pkg/database"
	"taskhub-service/pkg/jwtutil"
)

// testEnv is a fully wired API over an in-memory SQLite database.
type testEnv struct {
	e      *echo.Echo
	db     *gorm.DB
	signer *jwtutil.Signer
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	// Unique shared-cache DSN per test so pooled connections see the
	// same in-memory database without leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	signer := jwtutil.NewSigner(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	recorder := audit.NewRecorder(db, zap.NewNop())

	e := echo.New()
	RegisterRoutes(e, db, signer, recorder, middleware.NewRateLimiter(1000, 1000))

	return &testEnv{e: e, db: db, signer: signer}
}

func (env *testEnv) createTenant(t *testing.T, name, subdomain, status string, maxUsers, maxProjects int) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		Name:             name,
		Subdomain:        subdomain,
		Status:           status,
		SubscriptionPlan: model.PlanFree,
		MaxUsers:         maxUsers,
		MaxProjects:      maxProjects,
	}
	require.NoError(t, env.db.Create(tenant).Error)
	return tenant
}

func (env *testEnv) createUser(t *testing.T, tenantID *string, email, password, role string, active bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test " + email,
		Role:         role,
		IsActive:     active,
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *testEnv) createProject(t *testing.T, tenantID, creatorID, name string) *model.Project {
	t.Helper()
	project := &model.Project{
		TenantID:  tenantID,
		Name:      name,
		Status:    model.ProjectStatusActive,
		CreatedBy: creatorID,
	}
	require.NoError(t, env.db.Create(project).Error)
	return project
}

func (env *testEnv) createTask(t *testing.T, tenantID, projectID, title, priority string, assignedTo *string) *model.Task {
	t.Helper()
	task := &model.Task{
		TenantID:   tenantID,
		ProjectID:  projectID,
		Title:      title,
		Status:     model.TaskStatusTodo,
		Priority:   priority,
		AssignedTo: assignedTo,
	}
	require.NoError(t, env.db.Create(task).Error)
	return task
}

func (env *testEnv) tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	tenantID := ""
	if user.TenantID != nil {
		tenantID = *user.TenantID
	}
	token, err := env.signer.Generate(user.ID, tenantID, user.Role)
	require.NoError(t, err)
	return token
}

func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors the JSON response shape for assertions.
type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (env *testEnv) count(t *testing.T, value interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := env.db.Model(value)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
