package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrInternalServer, cause)

	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", err.Code)
	}
	if err.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", err.StatusCode)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to unwrap to its cause")
	}
	if !stderrors.Is(err, ErrInternalServer) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if err.Error() != ErrInternalServer.Message {
		t.Errorf("expected sentinel message, got %q", err.Error())
	}
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidInput, "title is required")

	if err.Message != "title is required" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if !stderrors.Is(err, ErrInvalidInput) {
		t.Error("expected custom-message error to match its sentinel")
	}
	if stderrors.Is(err, ErrNotFound) {
		t.Error("did not expect match against a different sentinel")
	}
}
