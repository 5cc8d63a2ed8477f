package google

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

func TestOAuthConfigRequiresClientCredentials(t *testing.T) {
	account := &store.Account{Email: "a@example.com"}
	_, err := OAuthConfig(account)
	if !provider.IsFatalAuth(err) {
		t.Errorf("expected fatal auth error for missing client credentials, got %v", err)
	}

	account.ClientID = "client"
	account.ClientSecret = "secret"
	conf, err := OAuthConfig(account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.ClientID != "client" {
		t.Errorf("ClientID = %q", conf.ClientID)
	}
	if conf.Endpoint.TokenURL == "" {
		t.Error("expected default Google token endpoint")
	}
}

func TestOAuthConfigCustomTokenURI(t *testing.T) {
	account := &store.Account{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURI:     "https://example.com/token",
	}
	conf, err := OAuthConfig(account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Endpoint.TokenURL != "https://example.com/token" {
		t.Errorf("TokenURL = %q", conf.Endpoint.TokenURL)
	}
}

func TestTokenFromAccount(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	account := &store.Account{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    &expiry,
	}

	token := Token(account)
	if token.AccessToken != "at" || token.RefreshToken != "rt" {
		t.Error("token fields not carried over")
	}
	if !token.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", token.Expiry, expiry)
	}
}

func TestClassifyRefreshError(t *testing.T) {
	invalidGrant := &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_grant",
	}
	if !provider.IsFatalAuth(ClassifyRefreshError("refresh_token", invalidGrant)) {
		t.Error("invalid_grant must classify as fatal auth")
	}

	serverErr := &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusInternalServerError},
	}
	if !provider.IsTransient(ClassifyRefreshError("refresh_token", serverErr)) {
		t.Error("token endpoint 500 must classify as transient")
	}

	rateLimited := &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests},
	}
	if !provider.IsTransient(ClassifyRefreshError("refresh_token", rateLimited)) {
		t.Error("token endpoint 429 must classify as transient")
	}

	if !provider.IsTransient(ClassifyRefreshError("refresh_token", errors.New("dial tcp: connection refused"))) {
		t.Error("network error must classify as transient")
	}
}
