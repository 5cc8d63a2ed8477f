package googletasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tasks "google.golang.org/api/tasks/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/dayplan/internal/google"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// AuthorizeURL is the application route that starts the Google
// authorization flow.
const AuthorizeURL = "/auth/google/authorize"

// Source is the Google Tasks provider, backed by the tasks/v1 API with
// credentials from the account store.
type Source struct {
	accounts *store.AccountStore
	logger   *slog.Logger
}

// New creates a Google Tasks source.
func New(accounts *store.AccountStore, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		accounts: accounts,
		logger:   logging.WithProvider(logger, provider.GoogleTasks),
	}
}

// Name returns the provider name.
func (s *Source) Name() string { return provider.GoogleTasks }

// Authenticate checks stored credentials, silently refreshing an expired
// access token when a refresh token is available. A redirect is returned for
// accounts that were never authorized, are flagged for reauth, or whose
// refresh was definitively rejected.
func (s *Source) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &provider.AuthRedirect{Provider: provider.GoogleTasks, URL: AuthorizeURL}, nil
	}
	if err != nil {
		return nil, err
	}

	if account.AccessToken == "" || account.NeedsReauth {
		return &provider.AuthRedirect{Provider: provider.GoogleTasks, URL: AuthorizeURL}, nil
	}

	if account.ExpiresAt != nil && account.ExpiresAt.Before(time.Now()) {
		if !account.HasRefreshToken() {
			return &provider.AuthRedirect{Provider: provider.GoogleTasks, URL: AuthorizeURL}, nil
		}
		if err := google.Refresh(ctx, s.accounts, id); err != nil {
			if provider.IsFatalAuth(err) {
				if markErr := s.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
					s.logger.Error("flagging account for reauth failed", logging.Err(markErr))
				}
				return &provider.AuthRedirect{Provider: provider.GoogleTasks, URL: AuthorizeURL}, nil
			}
			return nil, err
		}
	}

	return nil, nil
}

// FetchTasks returns all tasks across the account's task lists. Items with
// unparsable timestamps are logged and skipped.
func (s *Source) FetchTasks(ctx context.Context, id provider.Identity) ([]provider.TaskSnapshot, error) {
	svc, err := s.service(ctx, id)
	if err != nil {
		return nil, err
	}

	lists, err := svc.Tasklists.List().Context(ctx).Do()
	if err != nil {
		return nil, classify("list_tasklists", err)
	}

	var snapshots []provider.TaskSnapshot
	for _, list := range lists.Items {
		items, err := svc.Tasks.List(list.Id).
			ShowCompleted(true).
			ShowHidden(true).
			Context(ctx).Do()
		if err != nil {
			return nil, classify("list_tasks", err)
		}
		for _, item := range items.Items {
			snapshot, err := toSnapshot(item, list)
			if err != nil {
				s.logger.Warn("skipping malformed task",
					slog.String("task_id", item.Id), logging.Err(err))
				continue
			}
			snapshots = append(snapshots, snapshot)
		}
	}
	return snapshots, nil
}

// CreateTask creates a task in the account's default list.
func (s *Source) CreateTask(ctx context.Context, id provider.Identity, task provider.NewTask) (*provider.TaskSnapshot, error) {
	svc, err := s.service(ctx, id)
	if err != nil {
		return nil, err
	}

	item := &tasks.Task{
		Title: task.Title,
		Notes: task.Description,
	}
	if task.Due != nil {
		item.Due = task.Due.UTC().Format(time.RFC3339)
	}

	created, err := svc.Tasks.Insert("@default", item).Context(ctx).Do()
	if err != nil {
		return nil, classify("insert_task", err)
	}

	snapshot, err := toSnapshot(created, nil)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RefreshToken refreshes the account's access token against Google's token
// endpoint and persists the result.
func (s *Source) RefreshToken(ctx context.Context, id provider.Identity) error {
	return google.Refresh(ctx, s.accounts, id)
}

func (s *Source) service(ctx context.Context, id provider.Identity) (*tasks.Service, error) {
	client, err := google.HTTPClient(ctx, s.accounts, id)
	if err != nil {
		return nil, err
	}
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating tasks service: %w", err)
	}
	return svc, nil
}

// classify maps Google API errors onto the provider taxonomy.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return provider.ClassifyHTTPStatus(op, apiErr.Code, apiErr.Message)
	}
	return provider.ClassifyTransportError(op, err)
}

// toSnapshot normalizes a Google task. Google Tasks has no priority notion;
// everything lands at the lowest ordinal.
func toSnapshot(item *tasks.Task, list *tasks.TaskList) (provider.TaskSnapshot, error) {
	snapshot := provider.TaskSnapshot{
		ID:          item.Id,
		Title:       item.Title,
		Description: item.Notes,
		Status:      provider.StatusActive,
		Priority:    1,
		ParentID:    item.Parent,
	}
	if list != nil {
		snapshot.ProjectID = list.Id
		snapshot.ProjectName = list.Title
	}
	if item.Status == "completed" {
		snapshot.Status = provider.StatusCompleted
	}

	if item.Due != "" {
		due, err := time.Parse(time.RFC3339, item.Due)
		if err != nil {
			return provider.TaskSnapshot{}, &provider.DataError{
				Op:  "parse_due",
				Err: fmt.Errorf("due %q: %w", item.Due, err),
			}
		}
		snapshot.Due = &due
	}
	return snapshot, nil
}
