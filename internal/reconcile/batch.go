package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// Per-account sync outcome states.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeNeedsReauth = "needs_reauth"
)

// AccountOutcome reports how the sync of one account ended. A batch always
// yields one outcome per account so callers can show partial success.
type AccountOutcome struct {
	Provider string                 `json:"provider"`
	Email    string                 `json:"email"`
	Status   string                 `json:"status"`
	Result   *Result                `json:"result,omitempty"`
	Redirect *provider.AuthRedirect `json:"redirect,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Orchestrator syncs all of a user's task accounts against their providers.
// Accounts fail independently; one broken provider never aborts the batch.
type Orchestrator struct {
	accounts *store.AccountStore
	engine   *Engine
	sources  map[string]provider.TaskSource
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator with no sources registered.
func NewOrchestrator(accounts *store.AccountStore, engine *Engine, metrics *instrumentation.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		accounts: accounts,
		engine:   engine,
		sources:  make(map[string]provider.TaskSource),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register adds a task source under its provider name.
func (o *Orchestrator) Register(src provider.TaskSource) {
	o.sources[src.Name()] = src
}

// SyncUser fetches and reconciles every linked task account the user has a
// registered provider for, returning one outcome per account.
func (o *Orchestrator) SyncUser(ctx context.Context, userID string) ([]AccountOutcome, error) {
	accounts, err := o.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var outcomes []AccountOutcome
	for _, account := range accounts {
		src, ok := o.sources[account.Provider]
		if !ok {
			continue
		}
		id := provider.Identity{UserID: userID, Provider: account.Provider, Email: account.Email}
		outcome := o.syncAccount(ctx, src, id)
		o.metrics.RecordSyncOutcome(ctx, id.Provider, outcome.Status)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// SyncAccount syncs a single account.
func (o *Orchestrator) SyncAccount(ctx context.Context, id provider.Identity) (AccountOutcome, error) {
	src, ok := o.sources[id.Provider]
	if !ok {
		return AccountOutcome{}, &provider.DataError{
			Op:  "sync_account",
			Err: errUnknownProvider(id.Provider),
		}
	}
	outcome := o.syncAccount(ctx, src, id)
	o.metrics.RecordSyncOutcome(ctx, id.Provider, outcome.Status)
	return outcome, nil
}

// CreateTask creates a task with the account's provider and records it
// locally right away, appended to the unprioritized list.
func (o *Orchestrator) CreateTask(ctx context.Context, id provider.Identity, task provider.NewTask) (*provider.TaskSnapshot, error) {
	src, ok := o.sources[id.Provider]
	if !ok {
		return nil, &provider.DataError{
			Op:  "create_task",
			Err: errUnknownProvider(id.Provider),
		}
	}

	created, err := src.CreateTask(ctx, id, task)
	if err != nil {
		if provider.IsFatalAuth(err) {
			if markErr := o.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
				o.logger.Error("flagging account for reauth failed", logging.Err(markErr))
			}
		}
		return nil, err
	}

	// The local provider stores its own record; skip the duplicate
	if _, err := o.engine.tasks.GetByProviderID(ctx, id.UserID, id.Provider, created.ID); err == nil {
		return created, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	record := store.Task{
		UserID:         id.UserID,
		AccountEmail:   id.Email,
		Provider:       id.Provider,
		ProviderTaskID: created.ID,
		Title:          created.Title,
		Description:    created.Description,
		Status:         created.Status,
		DueDate:        created.Due,
		Priority:       created.Priority,
		ProjectID:      created.ProjectID,
		ProjectName:    created.ProjectName,
		ParentID:       created.ParentID,
		SectionID:      created.SectionID,
		ListType:       store.ListUnprioritized,
		ContentHash:    ContentHash(*created),
	}
	if err := o.engine.tasks.Create(ctx, &record); err != nil {
		return nil, err
	}
	return created, nil
}

func (o *Orchestrator) syncAccount(ctx context.Context, src provider.TaskSource, id provider.Identity) AccountOutcome {
	outcome := AccountOutcome{Provider: id.Provider, Email: id.Email}
	logger := o.logger.With(logging.Provider(id.Provider), logging.Account(id.Email))

	redirect, err := src.Authenticate(ctx, id)
	if err != nil {
		return o.fail(ctx, id, outcome, logger, "authenticate", err)
	}
	if redirect != nil {
		outcome.Status = OutcomeNeedsReauth
		outcome.Redirect = redirect
		logger.Info("account needs interactive auth", logging.Status(logging.StatusNeedsReauth))
		return outcome
	}

	start := time.Now()
	snapshots, err := src.FetchTasks(ctx, id)
	if err != nil {
		return o.fail(ctx, id, outcome, logger, "fetch_tasks", err)
	}

	result, err := o.engine.Reconcile(ctx, id, snapshots)
	if err != nil {
		return o.fail(ctx, id, outcome, logger, "reconcile", err)
	}
	o.metrics.ObserveReconcileDuration(ctx, id.Provider, time.Since(start))
	o.metrics.RecordReconcileChanges(ctx, id.Provider, result.Created, result.Updated, result.Deleted)

	if err := o.accounts.Touch(ctx, id); err != nil {
		logger.Error("recording sync time failed", logging.Err(err))
	}

	outcome.Status = OutcomeOK
	outcome.Result = &result
	return outcome
}

// fail classifies one account's failure. Fatal auth errors flag the account
// for reauthorization; everything else is reported and left for the next
// cycle.
func (o *Orchestrator) fail(ctx context.Context, id provider.Identity, outcome AccountOutcome, logger *slog.Logger, op string, err error) AccountOutcome {
	outcome.Error = err.Error()

	if provider.IsFatalAuth(err) {
		outcome.Status = OutcomeNeedsReauth
		if markErr := o.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
			logger.Error("flagging account for reauth failed", logging.Err(markErr))
		}
		logger.Warn("account requires reauthorization",
			logging.Operation(op), logging.Status(logging.StatusNeedsReauth), logging.Err(err))
		return outcome
	}

	outcome.Status = OutcomeError
	logger.Warn("account sync failed",
		logging.Operation(op), logging.Status(logging.StatusError), logging.Err(err))
	return outcome
}

type errUnknownProvider string

func (e errUnknownProvider) Error() string {
	return "no task provider registered for \"" + string(e) + "\""
}
