package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/api/handlers"
	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

const testPassword = "password123"

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type apiEnv struct {
	t      *testing.T
	router *gin.Engine
	repos  *repository.Repositories
}

func newAPIEnv(t *testing.T, database handlers.Pinger) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := repository.NewMemoryRepositories()
	services := service.NewServices(&service.ServiceDeps{
		Config: &config.Config{JWTSecret: "test-secret", JWTExpiry: 1, RefreshExpiry: 1},
		Repos:  repos,
		Logger: zap.NewNop(),
	})
	router := NewRouter(RouterDeps{
		Services:    services,
		Health:      handlers.NewHealthHandler(database, nil, func() int { return 0 }, false),
		CORSOrigins: []string{"http://localhost:3000"},
		Logger:      zap.NewNop(),
	})
	return &apiEnv{t: t, router: router, repos: repos}
}

func (e *apiEnv) addUser(email string, role types.Role) *repository.User {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)
	u := &repository.User{Email: email, Name: strings.Split(email, "@")[0], Password: string(hash), Role: role, IsActive: true}
	require.NoError(e.t, e.repos.UserRepo.Create(context.Background(), u))
	return u
}

func (e *apiEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", `{"email":"`+email+`","password":"`+testPassword+`"}`)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp models.AuthResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	return decode[models.ErrorResponse](t, w).Error
}

func TestRequiresAuthentication(t *testing.T) {
	env := newAPIEnv(t, pinger{})

	w := env.do(http.MethodGet, "/api/clients", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorOf(t, w).Code)

	w = env.do(http.MethodGet, "/api/clients", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClientLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t, pinger{})
	env.addUser("admin@ops.test", types.RoleAdmin)
	owner := env.addUser("u1@ops.test", types.RoleEmployee)
	env.addUser("u2@ops.test", types.RoleEmployee)
	adminToken := env.login("admin@ops.test")
	ownerToken := env.login("u1@ops.test")
	otherToken := env.login("u2@ops.test")

	w := env.do(http.MethodPost, "/api/clients", adminToken,
		`{"name":"Acme","companyName":"Acme Co","email":"a@acme.com","ownerId":"`+owner.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.ClientResponse](t, w)
	assert.Equal(t, types.LifecycleLead, created.LifecycleStatus)
	assert.Equal(t, types.WeightageRegular, created.Weightage)
	assert.Equal(t, types.SourceOther, created.Source)
	require.NotNil(t, created.Owner)
	assert.Equal(t, owner.ID, created.Owner.ID)

	w = env.do(http.MethodPost, "/api/clients", adminToken,
		`{"name":"Acme 2","companyName":"Acme Co","email":"A@acme.com","ownerId":"`+owner.ID+`"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/clients", ownerToken,
		`{"name":"Mine","companyName":"Me","email":"me@me.com","ownerId":"`+owner.ID+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	clientPath := "/api/clients/" + created.ID

	w = env.do(http.MethodPatch, clientPath, ownerToken, `{"notes":"called back"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "called back", *decode[models.ClientResponse](t, w).Notes)

	w = env.do(http.MethodPatch, clientPath, otherToken, `{"notes":"hijack"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPatch, clientPath, ownerToken, `{"notes":"x","leadScore":5}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "employees may only update notes", errorOf(t, w).Message)

	w = env.do(http.MethodPatch, clientPath, adminToken, `{"isHighRisk":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorOf(t, w).Code)

	w = env.do(http.MethodPatch, clientPath, adminToken, `{"ownerId":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "owner not found", errorOf(t, w).Message)

	w = env.do(http.MethodPatch, clientPath, adminToken, `{"lifecycleStatus":"ACTIVE","weightage":"REGULAR"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, clientPath+"/history", ownerToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.HistoryEntryResponse](t, w)
	require.Len(t, history, 3)
	assert.Equal(t, types.HistoryStatusChanged, history[0].ActionType)
	assert.Equal(t, "Status changed from LEAD to ACTIVE", history[0].Description)
	assert.Equal(t, types.HistoryCreated, history[2].ActionType)
	require.NotNil(t, history[0].Actor)
	assert.Equal(t, "admin", history[0].Actor.Name)

	w = env.do(http.MethodGet, clientPath+"/history", otherToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClientChecksRunBeforeFieldValidation(t *testing.T) {
	env := newAPIEnv(t, pinger{})
	env.addUser("admin@ops.test", types.RoleAdmin)
	owner := env.addUser("u1@ops.test", types.RoleEmployee)
	env.addUser("u2@ops.test", types.RoleEmployee)
	adminToken := env.login("admin@ops.test")
	ownerToken := env.login("u1@ops.test")
	otherToken := env.login("u2@ops.test")

	w := env.do(http.MethodPost, "/api/clients", adminToken,
		`{"name":"Acme","companyName":"Acme Co","email":"a@acme.com","ownerId":"`+owner.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clientPath := "/api/clients/" + decode[models.ClientResponse](t, w).ID

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     string
		wantCode int
		wantErr  string
	}{
		{"employee creates with empty body", http.MethodPost, "/api/clients", ownerToken, `{}`, http.StatusForbidden, "FORBIDDEN"},
		{"employee creates with bad fields", http.MethodPost, "/api/clients", ownerToken, `{"leadScore":"abc"}`, http.StatusForbidden, "FORBIDDEN"},
		{"non-owner sends bad value", http.MethodPatch, clientPath, otherToken, `{"leadScore":"abc"}`, http.StatusForbidden, "FORBIDDEN"},
		{"owner sends bad admin field", http.MethodPatch, clientPath, ownerToken, `{"leadScore":"abc"}`, http.StatusForbidden, "FORBIDDEN"},
		{"owner sends unknown field", http.MethodPatch, clientPath, ownerToken, `{"bogus":1}`, http.StatusForbidden, "FORBIDDEN"},
		{"employee on missing client", http.MethodPatch, "/api/clients/does-not-exist", ownerToken, `{"bogus":1}`, http.StatusNotFound, "NOT_FOUND"},
		{"admin on missing client", http.MethodPatch, "/api/clients/does-not-exist", adminToken, `{"leadScore":"abc"}`, http.StatusNotFound, "NOT_FOUND"},
		{"admin creates with empty body", http.MethodPost, "/api/clients", adminToken, `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"admin sends bad value", http.MethodPatch, clientPath, adminToken, `{"leadScore":"abc"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"owner sends bad notes", http.MethodPatch, clientPath, ownerToken, `{"notes":7}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, errorOf(t, w).Code)
		})
	}
}

func TestArchiveOverHTTP(t *testing.T) {
	env := newAPIEnv(t, pinger{})
	admin := env.addUser("admin@ops.test", types.RoleAdmin)
	token := env.login("admin@ops.test")

	w := env.do(http.MethodPost, "/api/clients", token,
		`{"name":"Acme","companyName":"Acme Co","email":"a@acme.com","ownerId":"`+admin.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/clients/" + decode[models.ClientResponse](t, w).ID + "/archive"

	w = env.do(http.MethodPatch, path, token, `{"archive":true,"unarchive":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPatch, path, token, `{"unarchive":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFLICT", errorOf(t, w).Code)

	w = env.do(http.MethodPatch, path, token, `{"archive":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.ClientResponse](t, w).IsArchived)

	w = env.do(http.MethodPatch, path, token, `{"archive":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFLICT", errorOf(t, w).Code)

	// Archived clients drop out of the default listing.
	w = env.do(http.MethodGet, "/api/clients", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.ClientResponse](t, w))

	w = env.do(http.MethodGet, "/api/clients?isArchived=true", token, "")
	assert.Len(t, decode[[]models.ClientResponse](t, w), 1)

	w = env.do(http.MethodGet, "/api/clients?lifecycleStatus=WON", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserAccessOverHTTP(t *testing.T) {
	env := newAPIEnv(t, pinger{})
	admin := env.addUser("admin@ops.test", types.RoleAdmin)
	staff := env.addUser("staff@ops.test", types.RoleEmployee)
	adminToken := env.login("admin@ops.test")
	staffToken := env.login("staff@ops.test")

	w := env.do(http.MethodPatch, "/api/users/"+admin.ID+"/access", adminToken, `{"role":"EMPLOYEE"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "cannot modify own role/self-disable", errorOf(t, w).Message)

	w = env.do(http.MethodGet, "/api/users", staffToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPatch, "/api/users/"+staff.ID+"/access", adminToken, `{"isActive":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.UserResponse](t, w).IsActive)

	// The deactivated user's still-valid token no longer resolves.
	w = env.do(http.MethodGet, "/api/users/me", staffToken, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/users", adminToken, `{"name":"Eve","email":"eve@ops.test"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.CreateUserResponse](t, w)
	assert.False(t, created.Emailed)
	assert.NotEmpty(t, created.TemporaryPassword)
	assert.True(t, created.User.MustChangePassword)
}

func TestTasksOverHTTP(t *testing.T) {
	env := newAPIEnv(t, pinger{})
	env.addUser("admin@ops.test", types.RoleAdmin)
	worker := env.addUser("worker@ops.test", types.RoleEmployee)
	adminToken := env.login("admin@ops.test")
	workerToken := env.login("worker@ops.test")

	w := env.do(http.MethodPost, "/api/tasks", adminToken, `{"title":"Call Acme","priority":"HIGH"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[models.TaskResponse](t, w)

	w = env.do(http.MethodPatch, "/api/tasks/"+task.ID+"/assign", adminToken, `{"assigneeId":"`+worker.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/tasks/my", workerToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TaskResponse](t, w), 1)

	w = env.do(http.MethodPatch, "/api/tasks/"+task.ID+"/status", workerToken, `{"status":"DONE"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[models.TaskResponse](t, w).CompletedAt)
}

func TestHealth(t *testing.T) {
	w := newAPIEnv(t, pinger{}).do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])

	w = newAPIEnv(t, pinger{err: errors.New("down")}).do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
