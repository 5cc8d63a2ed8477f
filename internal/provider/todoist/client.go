package todoist

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

	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

const defaultBaseURL = "https://api.todoist.com/rest/v2"

// SetupURL is where a user configures their Todoist API key.
const SetupURL = "/settings/todoist"

// Source is the Todoist task provider. Todoist authenticates with a flat
// API key, so there is no token refresh; an invalid key always requires the
// user to paste a new one.
type Source struct {
	accounts   *store.AccountStore
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New creates a Todoist source backed by the credential store.
func New(accounts *store.AccountStore, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		accounts:   accounts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logging.WithProvider(logger, provider.Todoist),
	}
}

// Name returns the provider name.
func (s *Source) Name() string { return provider.Todoist }

// Authenticate reports whether the account's API key is usable. Todoist has
// no interactive OAuth flow here; a missing or flagged key redirects the
// user to the settings page to supply one.
func (s *Source) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &provider.AuthRedirect{Provider: provider.Todoist, URL: SetupURL}, nil
	}
	if err != nil {
		return nil, err
	}
	if account.APIKey == "" || account.NeedsReauth {
		return &provider.AuthRedirect{Provider: provider.Todoist, URL: SetupURL}, nil
	}
	return nil, nil
}

// FetchTasks returns the account's current Todoist tasks. Items with
// unparsable due dates are logged and skipped; everything else raises.
func (s *Source) FetchTasks(ctx context.Context, id provider.Identity) ([]provider.TaskSnapshot, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var apiTasks []apiTask
	if err := s.doJSON(ctx, account, http.MethodGet, "/tasks", nil, &apiTasks); err != nil {
		return nil, err
	}

	projectNames, err := s.projectNames(ctx, account)
	if err != nil {
		// Project names are decoration; a failed lookup must not sink the
		// whole fetch
		s.logger.Warn("fetching project names failed", logging.Err(err))
		projectNames = map[string]string{}
	}

	snapshots := make([]provider.TaskSnapshot, 0, len(apiTasks))
	for _, t := range apiTasks {
		snapshot, err := toSnapshot(t, projectNames)
		if err != nil {
			s.logger.Warn("skipping malformed task",
				slog.String("task_id", t.ID), logging.Err(err))
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// CreateTask creates a task in Todoist.
func (s *Source) CreateTask(ctx context.Context, id provider.Identity, task provider.NewTask) (*provider.TaskSnapshot, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req := createTaskRequest{
		Content:     task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		ProjectID:   task.ProjectID,
	}
	if task.Due != nil {
		req.DueDatetime = task.Due.UTC().Format(time.RFC3339)
	}

	var created apiTask
	if err := s.doJSON(ctx, account, http.MethodPost, "/tasks", req, &created); err != nil {
		return nil, err
	}

	snapshot, err := toSnapshot(created, nil)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RefreshToken always fails: Todoist API keys are long-lived and cannot be
// refreshed. The scheduler never selects these accounts because they store
// no refresh token.
func (s *Source) RefreshToken(_ context.Context, _ provider.Identity) error {
	return &provider.FatalAuthError{
		Op:  "refresh_token",
		Err: errors.New("todoist api keys cannot be refreshed"),
	}
}

func (s *Source) projectNames(ctx context.Context, account *store.Account) (map[string]string, error) {
	var projects []apiProject
	if err := s.doJSON(ctx, account, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names, nil
}

// doJSON performs one authenticated API call, classifying failures onto the
// provider error taxonomy.
func (s *Source) doJSON(ctx context.Context, account *store.Account, method, path string, body, out any) error {
	op := fmt.Sprintf("todoist %s %s", method, path)

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
	req.Header.Set("Authorization", "Bearer "+account.APIKey)
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

// toSnapshot normalizes a Todoist task. Todoist priorities already run
// 1 (normal) through 4 (urgent), matching the normalized scale.
func toSnapshot(t apiTask, projectNames map[string]string) (provider.TaskSnapshot, error) {
	snapshot := provider.TaskSnapshot{
		ID:          t.ID,
		Title:       t.Content,
		Description: t.Description,
		Status:      provider.StatusActive,
		Priority:    t.Priority,
		ProjectID:   t.ProjectID,
		ProjectName: projectNames[t.ProjectID],
		ParentID:    t.ParentID,
		SectionID:   t.SectionID,
	}
	if t.IsCompleted {
		snapshot.Status = provider.StatusCompleted
	}

	due, err := parseDue(t.Due)
	if err != nil {
		return provider.TaskSnapshot{}, &provider.DataError{Op: "parse_due", Err: err}
	}
	snapshot.Due = due

	return snapshot, nil
}

func parseDue(due *apiDue) (*time.Time, error) {
	if due == nil {
		return nil, nil
	}
	if due.Datetime != "" {
		parsed, err := time.Parse(time.RFC3339, due.Datetime)
		if err != nil {
			return nil, fmt.Errorf("due datetime %q: %w", due.Datetime, err)
		}
		return &parsed, nil
	}
	if due.Date != "" {
		parsed, err := time.Parse("2006-01-02", due.Date)
		if err != nil {
			return nil, fmt.Errorf("due date %q: %w", due.Date, err)
		}
		return &parsed, nil
	}
	return nil, nil
}
