package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/services"
)

const (
	budgetID  = "0190f5a4-7b1c-7000-8000-0000000000b1"
	budgetID2 = "0190f5a4-7b1c-7000-8000-0000000000b2"
	otherUser = "0190f5a4-7b1c-7000-8000-000000000002"
)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn      func(input services.BudgetInput) (*models.Budget, error)
	getBudgetsFn        func(filter services.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn     func(id string) (*models.Budget, error)
	updateBudgetFn      func(id string, fields services.BudgetUpdateFields) (*models.Budget, error)
	deleteBudgetFn      func(id string) error
	bulkDeleteBudgetsFn func(ids []string) (int, error)
	exportBudgetsFn     func(filter services.BudgetFilter) ([]*services.BudgetExportRow, error)
}

func (m *mockBudgetService) CreateBudget(input services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetBudgets(filter services.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	if m.getBudgetsFn != nil {
		return m.getBudgetsFn(filter, page)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(id string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(id)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(id string, fields services.BudgetUpdateFields) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(id, fields)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(id string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(id)
	}
	return nil
}

func (m *mockBudgetService) BulkDeleteBudgets(ids []string) (int, error) {
	if m.bulkDeleteBudgetsFn != nil {
		return m.bulkDeleteBudgetsFn(ids)
	}
	return len(ids), nil
}

func (m *mockBudgetService) ExportBudgets(filter services.BudgetFilter) ([]*services.BudgetExportRow, error) {
	if m.exportBudgetsFn != nil {
		return m.exportBudgetsFn(filter)
	}
	return nil, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(operatorID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.GET("/budgets/export", handler.ExportBudgets)
	auth.POST("/budgets/bulk-delete", handler.BulkDeleteBudgets)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 and defaults the owner to the operator", func(t *testing.T) {
		var got services.BudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(input services.BudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{
					Base:           models.Base{ID: budgetID},
					UserID:         input.UserID,
					CategoryID:     input.CategoryID,
					Title:          input.Title,
					AssignedAmount: input.AssignedAmount,
					Month:          input.Month,
					Year:           2025,
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"category_id":"`+categoryID+`","title":"Food","assigned_amount":"100.00","month":"March"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.UserID != operatorID {
			t.Errorf("expected owner %s, got %q", operatorID, got.UserID)
		}
		if !got.AssignedAmount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected assigned 100, got %s", got.AssignedAmount)
		}
		if got.Year != 0 {
			t.Errorf("expected year left to the service, got %d", got.Year)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["available"] != "100" && budget["available"] != "100.00" {
			t.Errorf("expected available 100, got %v", budget["available"])
		}
		if budget["status"] != "ok" {
			t.Errorf("expected status ok, got %v", budget["status"])
		}
	})

	t.Run("accepts an explicit owner and numeric amount", func(t *testing.T) {
		var got services.BudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(input services.BudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{Base: models.Base{ID: budgetID}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"user_id":"`+otherUser+`","category_id":"`+categoryID+`","title":"Food","assigned_amount":0,"month":"May","year":2026}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.UserID != otherUser || got.Year != 2026 || !got.AssignedAmount.IsZero() {
			t.Errorf("unexpected input %+v", got)
		}
	})

	cases := []struct {
		name string
		body string
	}{
		{"missing category", `{"title":"Food","assigned_amount":"10","month":"March"}`},
		{"missing title", `{"category_id":"` + categoryID + `","assigned_amount":"10","month":"March"}`},
		{"missing amount", `{"category_id":"` + categoryID + `","title":"Food","month":"March"}`},
		{"negative amount", `{"category_id":"` + categoryID + `","title":"Food","assigned_amount":"-1","month":"March"}`},
		{"unknown month", `{"category_id":"` + categoryID + `","title":"Food","assigned_amount":"10","month":"Marzo"}`},
		{"malformed category id", `{"category_id":"7","title":"Food","assigned_amount":"10","month":"March"}`},
		{"year out of range", `{"category_id":"` + categoryID + `","title":"Food","assigned_amount":"10","month":"March","year":99}`},
	}
	for _, tc := range cases {
		t.Run("returns 400 on "+tc.name, func(t *testing.T) {
			r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/budgets", tc.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 404 on unknown category", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(services.BudgetInput) (*models.Budget, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets",
			`{"category_id":"`+categoryID+`","title":"Food","assigned_amount":"10","month":"March"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		var got services.BudgetFilter
		budgetSvc := &mockBudgetService{
			getBudgetsFn: func(filter services.BudgetFilter, _ pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?user_id="+otherUser+"&category_id="+categoryID+"&month=June&year=2025&search=food", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.UserID != otherUser || got.CategoryID != categoryID || got.Search != "food" {
			t.Errorf("unexpected filter %+v", got)
		}
		if got.Month == nil || *got.Month != "June" {
			t.Errorf("expected month June, got %v", got.Month)
		}
		if got.Year == nil || *got.Year != 2025 {
			t.Errorf("expected year 2025, got %v", got.Year)
		}
	})

	for _, query := range []string{"month=june", "year=abc", "user_id=1"} {
		t.Run("returns 400 on "+query, func(t *testing.T) {
			r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

			rec := doRequest(r, "GET", "/budgets?"+query, "")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("reports over-budget status", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetByIDFn: func(id string) (*models.Budget, error) {
				return &models.Budget{
					Base:           models.Base{ID: id},
					AssignedAmount: decimal.NewFromInt(50),
					SpendAmount:    decimal.NewFromInt(80),
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+budgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["status"] != "over_budget" {
			t.Errorf("expected over_budget, got %v", budget["status"])
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetByIDFn: func(string) (*models.Budget, error) { return nil, apperrors.ErrBudgetNotFound },
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+budgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("ignores spend in the payload", func(t *testing.T) {
		var got services.BudgetUpdateFields
		budgetSvc := &mockBudgetService{
			updateBudgetFn: func(id string, fields services.BudgetUpdateFields) (*models.Budget, error) {
				got = fields
				return &models.Budget{Base: models.Base{ID: id}, Title: "Food"}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+budgetID, `{"assigned_amount":"250.50","spend_amount":"999"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.AssignedAmount == nil || got.AssignedAmount.String() != "250.5" {
			t.Errorf("expected assigned 250.5, got %v", got.AssignedAmount)
		}
		if got.Title != nil || got.Month != nil || got.UserID != nil {
			t.Errorf("expected untouched fields to stay nil, got %+v", got)
		}
	})

	t.Run("returns 400 on negative amount", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+budgetID, `{"assigned_amount":"-5"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, audit))

		rec := doRequest(r, "DELETE", "/budgets/"+budgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.entries) != 1 || audit.entries[0].resourceID != budgetID {
			t.Errorf("expected one audit entry for %s, got %v", budgetID, audit.entries)
		}
	})
}

func TestBudgetHandler_BulkDeleteBudgets(t *testing.T) {
	t.Run("returns the deleted count", func(t *testing.T) {
		var got []string
		budgetSvc := &mockBudgetService{
			bulkDeleteBudgetsFn: func(ids []string) (int, error) {
				got = ids
				return len(ids), nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/bulk-delete", `{"ids":["`+budgetID+`","`+budgetID2+`"]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(got) != 2 {
			t.Errorf("expected 2 ids, got %v", got)
		}
		if parseJSON(t, rec)["deleted"] != float64(2) {
			t.Errorf("expected deleted 2, got %s", rec.Body.String())
		}
	})

	t.Run("returns 400 on empty list", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/bulk-delete", `{"ids":[]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/bulk-delete", `{"ids":["nope"]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_ExportBudgets(t *testing.T) {
	budgetSvc := &mockBudgetService{
		exportBudgetsFn: func(services.BudgetFilter) ([]*services.BudgetExportRow, error) {
			return []*services.BudgetExportRow{{
				ID:             budgetID,
				Title:          "Food",
				UserEmail:      "ana@example.com",
				Category:       "Groceries",
				Month:          "March",
				Year:           2025,
				AssignedAmount: "100.00",
				SpendAmount:    "120.00",
				Available:      "-20.00",
				Status:         "over_budget",
			}}, nil
		},
	}
	r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/budgets/export", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", rec.Body.String())
	}
	if lines[0] != "id,title,user_email,category,month,year,assigned_amount,spend_amount,available,status" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",100.00,120.00,-20.00,over_budget") {
		t.Errorf("unexpected row %q", lines[1])
	}
}
