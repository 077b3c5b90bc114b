package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("disk full")
	err := NewStorageError(originalErr)

	if !errors.Is(err, originalErr) {
		t.Errorf("errors.Is should find the cause")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %v, want 500", err.HTTPStatus)
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestNewMissingParameterError(t *testing.T) {
	err := NewMissingParameterError("userId")
	if err.Code != ErrCodeMissingParameter {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeMissingParameter)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %v, want 400", err.HTTPStatus)
	}
	if err.Message != "userId required" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Context["parameter"] != "userId" {
		t.Errorf("Context[parameter] = %v", err.Context["parameter"])
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("notification")
	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.HTTPStatus != 404 {
		t.Errorf("HTTPStatus = %v, want 404", err.HTTPStatus)
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)

	if GetAppError(appErr) != appErr {
		t.Errorf("GetAppError() should return the error itself")
	}

	wrapped := fmt.Errorf("handler: %w", appErr)
	if GetAppError(wrapped) != appErr {
		t.Error("GetAppError() should extract AppError from a wrapped chain")
	}
	if !IsAppError(wrapped) {
		t.Error("IsAppError() should see through wrapping")
	}

	if GetAppError(errors.New("regular error")) != nil {
		t.Error("GetAppError() should return nil for regular error")
	}
	if GetAppError(nil) != nil {
		t.Error("GetAppError(nil) should return nil")
	}
}
