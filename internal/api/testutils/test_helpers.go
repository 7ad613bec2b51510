package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/medidesk/clinic-server/internal/api"
	"github.com/medidesk/clinic-server/internal/repository"
	"github.com/medidesk/clinic-server/internal/service"
	"github.com/medidesk/clinic-server/internal/storage"
	"github.com/medidesk/clinic-server/internal/utils"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router       *gin.Engine
	Store        *storage.Store
	Auth         *service.Auth
	Patients     *repository.Patients
	Appointments *repository.Appointments
	Finance      *repository.Finance
	TestUserJWT  string
}

// SetupTestContext builds the full stack over a temporary data directory.
// Each test gets its own store, so there is nothing to clean up.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.New(t.TempDir())
	assert.NoError(t, store.Init(), "Failed to initialize test store")

	patients := repository.NewPatients(store)
	appointments := repository.NewAppointments(store, patients)
	finance := repository.NewFinance(store)
	users := repository.NewUsers(store)

	guard := service.NewLoginGuard(store)
	auth := service.NewAuth(store, users, guard, testJWTSecret, "test-salt", 0)

	handler := api.NewHandler(auth, patients, appointments, finance, utils.NewLogger())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})
	// generous limits so tests never trip the rate limiter
	handler.SetupRoutes(router, api.NewRateLimiter(1000, 1000))

	return &TestContext{
		Router:       router,
		Store:        store,
		Auth:         auth,
		Patients:     patients,
		Appointments: appointments,
		Finance:      finance,
		TestUserJWT:  createTestUser(t, auth),
	}
}

// createTestUser registers and logs in a default user, returning its token.
func createTestUser(t *testing.T, auth *service.Auth) string {
	t.Helper()
	ctx := context.Background()

	_, err := auth.Register(ctx, "testuser", "testpassword", "testpassword")
	assert.NoError(t, err, "Failed to create test user")

	session, err := auth.Login(ctx, "testuser", "testpassword")
	assert.NoError(t, err, "Failed to log in test user")

	token, err := auth.SessionToken(session)
	assert.NoError(t, err, "Failed to generate session token")
	return token
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
