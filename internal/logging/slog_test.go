package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "test_operation")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithProvider(t *testing.T) {
	logger := slog.Default()
	result := WithProvider(logger, "todoist")
	if result == nil {
		t.Error("WithProvider returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestProviderAttr(t *testing.T) {
	attr := Provider("google_tasks")
	if attr.Key != KeyProvider {
		t.Errorf("Provider key = %q, want %q", attr.Key, KeyProvider)
	}
	if attr.Value.String() != "google_tasks" {
		t.Errorf("Provider value = %q, want %q", attr.Value.String(), "google_tasks")
	}
}

func TestAccountAttrAnonymizes(t *testing.T) {
	attr := Account("user@example.com")
	if attr.Key != KeyAccount {
		t.Errorf("Account key = %q, want %q", attr.Key, KeyAccount)
	}
	if strings.Contains(attr.Value.String(), "example.com") {
		t.Error("Account attribute leaked the raw email")
	}
}

func TestErr(t *testing.T) {
	// Non-nil error produces the error attribute
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "boom")
	}

	// Nil error produces an empty group that slog omits
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	if AnonymizeEmail("") != "" {
		t.Error("AnonymizeEmail of empty string should be empty")
	}

	a := AnonymizeEmail("user@example.com")
	b := AnonymizeEmail("user@example.com")
	if a != b {
		t.Error("AnonymizeEmail should be deterministic")
	}
	if !strings.HasPrefix(a, "user:") {
		t.Errorf("AnonymizeEmail result %q missing user: prefix", a)
	}
	if strings.Contains(a, "example.com") {
		t.Error("AnonymizeEmail leaked the raw email")
	}

	if AnonymizeEmail("other@example.com") == a {
		t.Error("different emails should hash differently")
	}
}

func TestSanitizeToken(t *testing.T) {
	if SanitizeToken("") != "<empty>" {
		t.Error("expected <empty> for empty token")
	}

	got := SanitizeToken("secret-token-value")
	if strings.Contains(got, "secret") {
		t.Errorf("SanitizeToken leaked token content: %q", got)
	}
	if got != "[token:18 chars]" {
		t.Errorf("SanitizeToken = %q, want [token:18 chars]", got)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"user@example.com", "example.com"},
		{"", ""},
		{"not-an-email", ""},
		{"a@b@c", ""},
	}

	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
