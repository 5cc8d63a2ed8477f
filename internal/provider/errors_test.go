package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		fatalAuth bool
		dataErr   bool
	}{
		{"unauthorized", http.StatusUnauthorized, false, true, false},
		{"forbidden", http.StatusForbidden, false, true, false},
		{"rate limited", http.StatusTooManyRequests, true, false, false},
		{"server error", http.StatusInternalServerError, true, false, false},
		{"bad gateway", http.StatusBadGateway, true, false, false},
		{"bad request", http.StatusBadRequest, false, false, true},
		{"unprocessable", http.StatusUnprocessableEntity, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyHTTPStatus("fetch_tasks", tt.status, "body")
			if err == nil {
				t.Fatal("expected an error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), tt.transient)
			}
			if IsFatalAuth(err) != tt.fatalAuth {
				t.Errorf("IsFatalAuth = %v, want %v", IsFatalAuth(err), tt.fatalAuth)
			}
			if IsDataError(err) != tt.dataErr {
				t.Errorf("IsDataError = %v, want %v", IsDataError(err), tt.dataErr)
			}
		})
	}
}

func TestClassifyHTTPStatusSuccess(t *testing.T) {
	if err := ClassifyHTTPStatus("fetch_tasks", http.StatusOK, ""); err != nil {
		t.Errorf("expected nil for 200, got %v", err)
	}
	if err := ClassifyHTTPStatus("fetch_tasks", http.StatusNoContent, ""); err != nil {
		t.Errorf("expected nil for 204, got %v", err)
	}
}

func TestClassifyTransportError(t *testing.T) {
	if err := ClassifyTransportError("fetch_tasks", nil); err != nil {
		t.Errorf("expected nil for nil error, got %v", err)
	}

	// Context cancellation passes through so shutdown is distinguishable
	err := ClassifyTransportError("fetch_tasks", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled to pass through, got %v", err)
	}
	if IsTransient(err) {
		t.Error("cancellation must not classify as transient")
	}

	// Plain connection errors are transient
	err = ClassifyTransportError("fetch_tasks", errors.New("connection refused"))
	if !IsTransient(err) {
		t.Errorf("expected transient, got %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	inner := errors.New("invalid_grant")
	err := fmt.Errorf("refreshing: %w", &FatalAuthError{Op: "refresh_token", Err: inner})

	if !IsFatalAuth(err) {
		t.Error("wrapped FatalAuthError not detected")
	}
	if !errors.Is(err, inner) {
		t.Error("inner error lost through wrapping")
	}
}

func TestIdentityStringOmitsEmail(t *testing.T) {
	id := Identity{UserID: "u1", Provider: Todoist, Email: "user@example.com"}
	if got := id.String(); got != "todoist account for user u1" {
		t.Errorf("Identity.String() = %q", got)
	}
}
