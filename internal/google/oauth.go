package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// OAuthConfig builds the OAuth2 config for a stored account. The client
// credentials and scope set come from the account record; the token endpoint
// defaults to Google's unless the record carries its own.
func OAuthConfig(account *store.Account) (*oauth2.Config, error) {
	if account.ClientID == "" || account.ClientSecret == "" {
		return nil, &provider.FatalAuthError{
			Op:  "oauth_config",
			Err: fmt.Errorf("account %s is missing client credentials", account.Email),
		}
	}

	endpoint := googleoauth.Endpoint
	if account.TokenURI != "" {
		endpoint.TokenURL = account.TokenURI
	}

	return &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       account.ScopeList(),
	}, nil
}

// Token builds the oauth2 token held by a stored account.
func Token(account *store.Account) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: account.RefreshToken,
	}
	if account.ExpiresAt != nil {
		token.Expiry = *account.ExpiresAt
	}
	return token
}

// TokenSource returns an auto-refreshing token source for the account. When
// the underlying source refreshes, the new token is written back through the
// same upsert path the interactive authorization uses.
func TokenSource(ctx context.Context, accounts *store.AccountStore, id provider.Identity) (oauth2.TokenSource, error) {
	account, err := accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	conf, err := OAuthConfig(account)
	if err != nil {
		return nil, err
	}

	current := Token(account)
	return &persistingTokenSource{
		ctx:      ctx,
		base:     conf.TokenSource(ctx, current),
		accounts: accounts,
		id:       id,
		last:     current.AccessToken,
	}, nil
}

// HTTPClient returns an HTTP client authenticated for the account.
// HTTP/2 is disabled; the Google API endpoints intermittently reset h2
// streams under long-lived daemon connections.
func HTTPClient(ctx context.Context, accounts *store.AccountStore, id provider.Identity) (*http.Client, error) {
	ts, err := TokenSource(ctx, accounts, id)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}
	return client, nil
}

// Refresh forces a token refresh for the account and persists the result.
// It fails with a FatalAuthError when the refresh token is absent or
// rejected, and a TransientError when the token endpoint is unreachable.
func Refresh(ctx context.Context, accounts *store.AccountStore, id provider.Identity) error {
	account, err := accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if !account.HasRefreshToken() {
		return &provider.FatalAuthError{
			Op:  "refresh_token",
			Err: errors.New("no refresh token stored"),
		}
	}

	conf, err := OAuthConfig(account)
	if err != nil {
		return err
	}

	// Handing the source only the refresh token forces a round trip to the
	// token endpoint instead of reusing a still-valid access token.
	newToken, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return ClassifyRefreshError("refresh_token", err)
	}

	return persistToken(ctx, accounts, id, newToken)
}

// ClassifyRefreshError maps token-endpoint failures onto the provider error
// taxonomy. A definitive rejection (invalid_grant, invalid_client) is fatal;
// anything that looks like endpoint trouble is transient.
func ClassifyRefreshError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return &provider.FatalAuthError{Op: op, Err: err}
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 &&
			retrieveErr.Response.StatusCode != http.StatusTooManyRequests {
			return &provider.FatalAuthError{Op: op, Err: err}
		}
		return &provider.TransientError{Op: op, Err: err}
	}
	return provider.ClassifyTransportError(op, err)
}

func persistToken(ctx context.Context, accounts *store.AccountStore, id provider.Identity, token *oauth2.Token) error {
	fields := store.AccountFields{
		AccessToken: store.Ptr(token.AccessToken),
	}
	if token.RefreshToken != "" {
		// Some providers rotate the refresh token on use
		fields.RefreshToken = store.Ptr(token.RefreshToken)
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		fields.ExpiresAt = &expiry
	}
	_, err := accounts.Upsert(ctx, id, fields)
	return err
}

// persistingTokenSource writes refreshed tokens back to the credential store
// so the next process start does not begin with an expired access token.
type persistingTokenSource struct {
	ctx      context.Context
	base     oauth2.TokenSource
	accounts *store.AccountStore
	id       provider.Identity
	last     string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if saveErr := persistToken(s.ctx, s.accounts, s.id, token); saveErr != nil {
			// The refreshed token is still usable; losing the write only
			// costs a refresh on the next start
			return token, nil
		}
	}
	return token, nil
}
