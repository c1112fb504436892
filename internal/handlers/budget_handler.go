package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
// UserID defaults to the authenticated operator. Spend is never accepted.
type CreateBudgetRequest struct {
	UserID         string           `json:"user_id" binding:"omitempty,uuid"`
	CategoryID     string           `json:"category_id" binding:"required,uuid"`
	Title          string           `json:"title" binding:"required,max=255"`
	AssignedAmount *decimal.Decimal `json:"assigned_amount" binding:"required,gte=0" swaggertype:"string"`
	Month          models.Month     `json:"month" binding:"required,month_name"`
	Year           int              `json:"year" binding:"omitempty,min=1900,max=9999"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	UserID         *string          `json:"user_id" binding:"omitempty,uuid"`
	CategoryID     *string          `json:"category_id" binding:"omitempty,uuid"`
	Title          *string          `json:"title" binding:"omitempty,min=1,max=255"`
	AssignedAmount *decimal.Decimal `json:"assigned_amount" binding:"omitempty,gte=0" swaggertype:"string"`
	Month          *models.Month    `json:"month" binding:"omitempty,month_name"`
	Year           *int             `json:"year" binding:"omitempty,min=1900,max=9999"`
}

// BulkDeleteResponse reports how many records a bulk delete removed.
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a monthly budget envelope for a user and category. Spend starts at zero.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	owner := req.UserID
	if owner == "" {
		owner = userID
	}

	budget, err := h.budgetService.CreateBudget(services.BudgetInput{
		UserID:         owner,
		CategoryID:     req.CategoryID,
		Title:          req.Title,
		AssignedAmount: *req.AssignedAmount,
		Month:          req.Month,
		Year:           req.Year,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"title": budget.Title, "assigned_amount": budget.AssignedAmount.String(), "user_id": budget.UserID})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// parseBudgetFilter reads the budget list filters from the query string.
func parseBudgetFilter(c *gin.Context) (services.BudgetFilter, error) {
	var filter services.BudgetFilter
	var err error

	if filter.UserID, err = parseOptionalID(c.Query("user_id"), "user_id"); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = parseOptionalID(c.Query("category_id"), "category_id"); err != nil {
		return filter, err
	}
	if v := c.Query("month"); v != "" {
		m := models.Month(v)
		if !m.IsValid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be an English month name")
		}
		filter.Month = &m
	}
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "year must be a number")
		}
		filter.Year = &y
	}
	filter.Search = c.Query("search")
	return filter, nil
}

// GetBudgets handles listing budgets.
// @Summary     Get budgets
// @Description Get a paginated list of budgets, oldest first, with their available amount and status
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       user_id     query string false "Filter by user"
// @Param       category_id query string false "Filter by category"
// @Param       month       query string false "Filter by month name"
// @Param       year        query int    false "Filter by year"
// @Param       search      query string false "Case-insensitive title match"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseBudgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetBudgets(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update a budget's owner, category, title, assigned amount or period. Spend is not editable.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Fields to change"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input or budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateBudget(budgetID, services.BudgetUpdateFields{
		UserID:         req.UserID,
		CategoryID:     req.CategoryID,
		Title:          req.Title,
		AssignedAmount: req.AssignedAmount,
		Month:          req.Month,
		Year:           req.Year,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_BUDGET", "budget", budgetID, c.ClientIP(),
		map[string]interface{}{"title": budget.Title, "assigned_amount": budget.AssignedAmount.String()})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Description Delete a budget by ID (soft delete)
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} map[string]string "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// BulkDeleteBudgets deletes several budgets at once.
// @Summary     Bulk delete budgets
// @Description Delete all listed budgets, or none if any is missing
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BulkDeleteRequest true "Budget IDs"
// @Success     200 {object} BulkDeleteResponse "Number of budgets deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/bulk-delete [post]
func (h *BudgetHandler) BulkDeleteBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	deleted, err := h.budgetService.BulkDeleteBudgets(ids)
	if err != nil {
		respondWithError(c, err)
		return
	}

	for _, id := range ids {
		h.auditService.Log(userID, "DELETE_BUDGET", "budget", id, c.ClientIP(), nil)
	}

	c.JSON(http.StatusOK, BulkDeleteResponse{Deleted: deleted})
}

// ExportBudgets streams the filtered budgets as CSV.
// @Summary     Export budgets
// @Description Download budgets as CSV with available amount and status
// @Tags        budgets
// @Produce     text/csv
// @Security    BearerAuth
// @Param       user_id     query string false "Filter by user"
// @Param       category_id query string false "Filter by category"
// @Param       month       query string false "Filter by month name"
// @Param       year        query int    false "Filter by year"
// @Param       search      query string false "Case-insensitive title match"
// @Success     200 {string} string "CSV file"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/export [get]
func (h *BudgetHandler) ExportBudgets(c *gin.Context) {
	filter, err := parseBudgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.budgetService.ExportBudgets(filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	filename := fmt.Sprintf("budgets-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
