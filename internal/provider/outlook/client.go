package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/teemow/dayplan/internal/google"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// AuthorizeURL is the application route that starts the Microsoft
// authorization flow.
const AuthorizeURL = "/auth/o365/authorize"

// Source is the Outlook task provider over the Microsoft Graph To Do API.
type Source struct {
	accounts   *store.AccountStore
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New creates an Outlook source backed by the credential store.
func New(accounts *store.AccountStore, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		accounts:   accounts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logging.WithProvider(logger, provider.Outlook),
	}
}

// Name returns the provider name.
func (s *Source) Name() string { return provider.Outlook }

// Authenticate checks stored credentials, refreshing silently when possible.
func (s *Source) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &provider.AuthRedirect{Provider: provider.Outlook, URL: AuthorizeURL}, nil
	}
	if err != nil {
		return nil, err
	}

	if account.AccessToken == "" || account.NeedsReauth {
		return &provider.AuthRedirect{Provider: provider.Outlook, URL: AuthorizeURL}, nil
	}

	if account.ExpiresAt != nil && account.ExpiresAt.Before(time.Now()) {
		if !account.HasRefreshToken() {
			return &provider.AuthRedirect{Provider: provider.Outlook, URL: AuthorizeURL}, nil
		}
		if err := s.RefreshToken(ctx, id); err != nil {
			if provider.IsFatalAuth(err) {
				if markErr := s.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
					s.logger.Error("flagging account for reauth failed", logging.Err(markErr))
				}
				return &provider.AuthRedirect{Provider: provider.Outlook, URL: AuthorizeURL}, nil
			}
			return nil, err
		}
	}

	return nil, nil
}

// FetchTasks returns the account's tasks across all To Do lists.
func (s *Source) FetchTasks(ctx context.Context, id provider.Identity) ([]provider.TaskSnapshot, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var lists listCollection
	if err := s.doJSON(ctx, account, http.MethodGet, "/me/todo/lists", nil, &lists); err != nil {
		return nil, err
	}

	var snapshots []provider.TaskSnapshot
	for _, list := range lists.Value {
		var items taskCollection
		path := fmt.Sprintf("/me/todo/lists/%s/tasks", list.ID)
		if err := s.doJSON(ctx, account, http.MethodGet, path, nil, &items); err != nil {
			return nil, err
		}
		for _, item := range items.Value {
			snapshot, err := toSnapshot(item, list)
			if err != nil {
				s.logger.Warn("skipping malformed task",
					slog.String("task_id", item.ID), logging.Err(err))
				continue
			}
			snapshots = append(snapshots, snapshot)
		}
	}
	return snapshots, nil
}

// CreateTask creates a task in the account's default To Do list.
func (s *Source) CreateTask(ctx context.Context, id provider.Identity, task provider.NewTask) (*provider.TaskSnapshot, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var lists listCollection
	if err := s.doJSON(ctx, account, http.MethodGet, "/me/todo/lists", nil, &lists); err != nil {
		return nil, err
	}
	if len(lists.Value) == 0 {
		return nil, &provider.DataError{Op: "create_task", Err: errors.New("account has no task lists")}
	}

	body := graphTask{
		Title:      task.Title,
		Importance: importanceFromPriority(task.Priority),
	}
	if task.Description != "" {
		body.Body = &itemBody{Content: task.Description, ContentType: "text"}
	}
	if task.Due != nil {
		body.DueDateTime = &dateTimeTimeZone{
			DateTime: task.Due.UTC().Format("2006-01-02T15:04:05.0000000"),
			TimeZone: "UTC",
		}
	}

	var created graphTask
	path := fmt.Sprintf("/me/todo/lists/%s/tasks", lists.Value[0].ID)
	if err := s.doJSON(ctx, account, http.MethodPost, path, body, &created); err != nil {
		return nil, err
	}

	snapshot, err := toSnapshot(created, lists.Value[0])
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RefreshToken refreshes the account's access token against the Microsoft
// identity platform and persists the result.
func (s *Source) RefreshToken(ctx context.Context, id provider.Identity) error {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if !account.HasRefreshToken() {
		return &provider.FatalAuthError{
			Op:  "refresh_token",
			Err: errors.New("no refresh token stored"),
		}
	}

	conf := &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint("common"),
		Scopes:       account.ScopeList(),
	}
	if account.TokenURI != "" {
		conf.Endpoint.TokenURL = account.TokenURI
	}

	newToken, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return google.ClassifyRefreshError("refresh_token", err)
	}

	fields := store.AccountFields{AccessToken: store.Ptr(newToken.AccessToken)}
	if newToken.RefreshToken != "" {
		fields.RefreshToken = store.Ptr(newToken.RefreshToken)
	}
	if !newToken.Expiry.IsZero() {
		expiry := newToken.Expiry.UTC()
		fields.ExpiresAt = &expiry
	}
	_, err = s.accounts.Upsert(ctx, id, fields)
	return err
}

func (s *Source) doJSON(ctx context.Context, account *store.Account, method, path string, body, out any) error {
	op := fmt.Sprintf("graph %s %s", method, path)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return provider.ClassifyTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.ClassifyTransportError(op, err)
	}

	if err := provider.ClassifyHTTPStatus(op, resp.StatusCode, string(payload)); err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return &provider.DataError{Op: op, Err: err}
		}
	}
	return nil
}
