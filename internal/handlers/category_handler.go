package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/services"
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name string              `json:"name" binding:"required,max=255"`
	Type models.CategoryType `json:"type" binding:"required,category_type"`
}

// UpdateCategoryRequest represents the request payload for updating a category
type UpdateCategoryRequest struct {
	Name *string              `json:"name" binding:"omitempty,min=1,max=255"`
	Type *models.CategoryType `json:"type" binding:"omitempty,category_type"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a new income (ingreso) or expense (egreso) category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(req.Name, req.Type)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CATEGORY", "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": category.Type})

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategories lists categories
// @Summary     Get categories
// @Description Get a paginated list of categories ordered by name
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       type      query string false "Filter by category type (ingreso/egreso)"
// @Param       search    query string false "Case-insensitive name match"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Category] "Paginated categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [get]
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.CategoryFilter{Search: c.Query("search")}
	if v := c.Query("type"); v != "" {
		t := models.CategoryType(v)
		if !t.IsValid() {
			respondWithError(c, apperrors.ErrInvalidCategoryType)
			return
		}
		filter.Type = &t
	}

	result, err := h.categoryService.GetCategories(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCategory returns one category
// @Summary     Get category by ID
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category"
// @Failure     400 {object} ErrorResponse "Invalid category ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory renames or retypes a category
// @Summary     Update category
// @Description Changing the type affects only transaction changes made afterwards
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Fields to change"
// @Success     200 {object} models.Category "Updated category"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(id, req.Name, req.Type)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CATEGORY", "category", id, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": category.Type})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory removes an unused category
// @Summary     Delete category
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} map[string]string "Category deleted"
// @Failure     400 {object} ErrorResponse "Invalid category ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category in use"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CATEGORY", "category", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
