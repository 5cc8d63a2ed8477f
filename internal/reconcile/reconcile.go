package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// Result counts the changes one reconciliation pass applied.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Engine diffs fetched task snapshots against the local store for one
// (user, provider) pair.
type Engine struct {
	tasks  *store.TaskStore
	logger *slog.Logger
}

// NewEngine creates a reconciliation engine over the task store.
func NewEngine(tasks *store.TaskStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tasks: tasks, logger: logger}
}

// Reconcile applies one fetched snapshot set. Snapshots are processed in
// fetch order: unknown tasks are created at the end of the unprioritized
// list, known tasks take the status fast path first and a full content update
// when the hash still differs. The deletion pass runs strictly after all
// creates and updates, removing every stored task of this (user, provider)
// pair that the fetch did not contain.
func (e *Engine) Reconcile(ctx context.Context, id provider.Identity, snapshots []provider.TaskSnapshot) (Result, error) {
	var result Result
	seen := make([]string, 0, len(snapshots))

	for _, snapshot := range snapshots {
		seen = append(seen, snapshot.ID)
		hash := ContentHash(snapshot)

		existing, err := e.tasks.GetByProviderID(ctx, id.UserID, id.Provider, snapshot.ID)
		if errors.Is(err, store.ErrNotFound) {
			task := store.Task{
				UserID:         id.UserID,
				AccountEmail:   id.Email,
				Provider:       id.Provider,
				ProviderTaskID: snapshot.ID,
				Title:          snapshot.Title,
				Description:    snapshot.Description,
				Status:         snapshot.Status,
				DueDate:        snapshot.Due,
				Priority:       snapshot.Priority,
				ProjectID:      snapshot.ProjectID,
				ProjectName:    snapshot.ProjectName,
				ParentID:       snapshot.ParentID,
				SectionID:      snapshot.SectionID,
				ListType:       store.ListUnprioritized,
				ContentHash:    hash,
			}
			if err := e.tasks.Create(ctx, &task); err != nil {
				return result, err
			}
			result.Created++
			continue
		}
		if err != nil {
			return result, err
		}

		updated := false

		// Status fast path: cheap idempotent write, hash kept consistent
		if existing.Status != snapshot.Status {
			if err := e.tasks.UpdateStatus(ctx, existing, snapshot.Status, storedHash(existing, snapshot.Status)); err != nil {
				return result, err
			}
			updated = true
		}

		// Full comparison still fires; catches changes beyond status
		if existing.ContentHash != hash {
			existing.AccountEmail = id.Email
			existing.Title = snapshot.Title
			existing.Description = snapshot.Description
			existing.Status = snapshot.Status
			existing.DueDate = snapshot.Due
			existing.Priority = snapshot.Priority
			existing.ProjectID = snapshot.ProjectID
			existing.ProjectName = snapshot.ProjectName
			existing.ParentID = snapshot.ParentID
			existing.SectionID = snapshot.SectionID
			existing.ContentHash = hash
			if err := e.tasks.UpdateContent(ctx, existing); err != nil {
				return result, err
			}
			updated = true
		}

		if updated {
			result.Updated++
		}
	}

	deleted, err := e.tasks.DeleteMissing(ctx, id.UserID, id.Provider, seen)
	if err != nil {
		return result, err
	}
	result.Deleted = int(deleted)

	if result.Created+result.Updated+result.Deleted > 0 {
		e.logger.Info("reconciled tasks",
			logging.Provider(id.Provider),
			logging.Account(id.Email),
			slog.Int("created", result.Created),
			slog.Int("updated", result.Updated),
			slog.Int("deleted", result.Deleted))
	}
	return result, nil
}
