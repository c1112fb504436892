package testutil

import (
	"errors"
	"testing"

	apperrors "budgetoffice/internal/errors"

	"github.com/shopspring/decimal"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal fails the test unless got equals the decimal written in want.
// Comparison is numeric, so "12.5" matches 12.50.
func AssertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()

	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, got.String())
	}
}
