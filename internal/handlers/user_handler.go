package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/services"
)

// UserHandler lists the users budgets and transactions can be assigned to.
type UserHandler struct {
	userService services.UserServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetUsers lists users.
// @Summary     List users
// @Description Get a paginated list of users, optionally filtered by email or name
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       search    query string false "Case-insensitive match on email or name"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.User] "Paginated users"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users [get]
func (h *UserHandler) GetUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.userService.ListUsers(c.Query("search"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUser returns one user.
// @Summary     Get user by ID
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User ID"
// @Success     200 {object} UserResponse "User"
// @Failure     400 {object} ErrorResponse "Invalid user ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}
