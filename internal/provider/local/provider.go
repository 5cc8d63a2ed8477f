// Package local implements the store-backed fallback task provider. Tasks
// created here live only in the local database; fetching them feeds the same
// reconciliation pipeline the remote providers use, so list views never
// special-case where a task came from.
package local

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/reconcile"
	"github.com/teemow/dayplan/internal/store"
)

// Source is the local task provider.
type Source struct {
	tasks  *store.TaskStore
	logger *slog.Logger
}

// New creates a local source over the task store.
func New(tasks *store.TaskStore, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{tasks: tasks, logger: logger}
}

// Name returns the provider name.
func (s *Source) Name() string { return provider.Local }

// Authenticate always succeeds; local tasks need no credentials.
func (s *Source) Authenticate(_ context.Context, _ provider.Identity) (*provider.AuthRedirect, error) {
	return nil, nil
}

// FetchTasks returns the user's locally stored tasks as snapshots.
func (s *Source) FetchTasks(ctx context.Context, id provider.Identity) ([]provider.TaskSnapshot, error) {
	tasks, err := s.tasks.ListByUserProvider(ctx, id.UserID, provider.Local)
	if err != nil {
		return nil, err
	}

	snapshots := make([]provider.TaskSnapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshots = append(snapshots, provider.TaskSnapshot{
			ID:          task.ProviderTaskID,
			Title:       task.Title,
			Description: task.Description,
			Status:      task.Status,
			Due:         task.DueDate,
			Priority:    task.Priority,
			ProjectID:   task.ProjectID,
			ProjectName: task.ProjectName,
			ParentID:    task.ParentID,
			SectionID:   task.SectionID,
		})
	}
	return snapshots, nil
}

// CreateTask stores a new local task directly. The content hash is set at
// create time so the next sync sees the record as unchanged.
func (s *Source) CreateTask(ctx context.Context, id provider.Identity, task provider.NewTask) (*provider.TaskSnapshot, error) {
	snapshot := provider.TaskSnapshot{
		ID:          uuid.NewString(),
		Title:       task.Title,
		Description: task.Description,
		Status:      provider.StatusActive,
		Due:         task.Due,
		Priority:    task.Priority,
		ProjectID:   task.ProjectID,
	}

	record := store.Task{
		UserID:         id.UserID,
		AccountEmail:   id.Email,
		Provider:       provider.Local,
		ProviderTaskID: snapshot.ID,
		Title:          snapshot.Title,
		Description:    snapshot.Description,
		Status:         snapshot.Status,
		DueDate:        snapshot.Due,
		Priority:       snapshot.Priority,
		ProjectID:      snapshot.ProjectID,
		ContentHash:    reconcile.ContentHash(snapshot),
	}
	if err := s.tasks.Create(ctx, &record); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// RefreshToken is a no-op; there is nothing to refresh.
func (s *Source) RefreshToken(_ context.Context, _ provider.Identity) error {
	return nil
}
