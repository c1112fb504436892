package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/middleware"
	"budgetoffice/internal/uuid"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID parses a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
//
//nolint:unparam // param is intentionally generic for reuse across handlers with different path params
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// parseOptionalID validates an optional UUID query or body value. Empty
// input yields an empty ID.
func parseOptionalID(value, name string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+name)
	}
	return id, nil
}

// parseIDs validates a list of UUIDs from a bulk request.
func parseIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid id: "+raw)
		}
		out = append(out, id)
	}
	return out, nil
}

// BulkDeleteRequest is the payload of the bulk delete endpoints.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=500"`
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
