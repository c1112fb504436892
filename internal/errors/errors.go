// Package errors provides the application error type returned by services.
// Handlers turn an AppError into a JSON response using its status code,
// code, and message; the wrapped internal error is logged and never sent
// to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidToken       = &AppError{Code: "INVALID_TOKEN", Message: "Invalid or expired token", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}

	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse       = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing budgets or transactions", StatusCode: http.StatusConflict}
	ErrDuplicateCategory   = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
	ErrInvalidCategoryType = &AppError{Code: "INVALID_CATEGORY_TYPE", Message: "Category type must be 'ingreso' or 'egreso'", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound   = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotTrashed = &AppError{Code: "TRANSACTION_NOT_TRASHED", Message: "Transaction has not been deleted", StatusCode: http.StatusConflict}
	ErrNegativeAmount        = &AppError{Code: "INVALID_INPUT", Message: "amount must not be negative", StatusCode: http.StatusBadRequest}
)
