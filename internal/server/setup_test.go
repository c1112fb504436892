package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"budgetoffice/internal/config"
	"budgetoffice/internal/logger"
	"budgetoffice/internal/server"
	"budgetoffice/internal/testutil"
	"budgetoffice/internal/validator"
)

const pipelineKey = "pipeline-test-key"

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Config *config.Config
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	cfg := &config.Config{
		Env:               "test",
		PipelineAPIKey:    pipelineKey,
		UploadDir:         t.TempDir(),
		MaxUploadMB:       1,
		DefaultBudgetYear: 2025,
	}
	return &testApp{DB: db, Router: server.NewRouter(db, cfg), Config: cfg}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// requestWithKey makes a pipeline request authenticated with X-API-Key.
func (app *testApp) requestWithKey(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", key)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result), "body: %s", rec.Body.String())
	return result
}

// mustStatus fails the test unless rec has the wanted status, and returns the parsed body.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
	return parseJSON(t, rec)
}

// registerUser registers an operator and returns the access token, refresh token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	result := mustStatus(t, app.request("POST", "/api/v1/auth/register", body, ""), http.StatusCreated)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// createCategory creates a category through the API and returns its ID.
func (app *testApp) createCategory(t *testing.T, token, name, categoryType string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q}`, name, categoryType)
	result := mustStatus(t, app.request("POST", "/api/v1/categories", body, token), http.StatusCreated)
	return result["category"].(map[string]interface{})["id"].(string)
}

// createBudget creates a budget through the API and returns its ID.
func (app *testApp) createBudget(t *testing.T, token, userID, categoryID, assigned string) string {
	t.Helper()
	body := fmt.Sprintf(`{"user_id":%q,"category_id":%q,"title":"Budget","assigned_amount":%q,"month":"March"}`,
		userID, categoryID, assigned)
	result := mustStatus(t, app.request("POST", "/api/v1/budgets", body, token), http.StatusCreated)
	return result["budget"].(map[string]interface{})["id"].(string)
}

// createTransaction records a transaction through the API and returns its ID.
func (app *testApp) createTransaction(t *testing.T, token, userID, categoryID, amount string) string {
	t.Helper()
	body := fmt.Sprintf(`{"user_id":%q,"category_id":%q,"amount":%q,"description":"Purchase","transaction_date":"2025-03-10"}`,
		userID, categoryID, amount)
	result := mustStatus(t, app.request("POST", "/api/v1/transactions", body, token), http.StatusCreated)
	return result["transaction"].(map[string]interface{})["id"].(string)
}

// spend fetches a budget and returns its spend amount.
func (app *testApp) spend(t *testing.T, token, budgetID string) decimal.Decimal {
	t.Helper()
	result := mustStatus(t, app.request("GET", "/api/v1/budgets/"+budgetID, "", token), http.StatusOK)
	raw := result["budget"].(map[string]interface{})["spend_amount"]
	d, err := decimal.NewFromString(fmt.Sprint(raw))
	require.NoError(t, err)
	return d
}
