package calendar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// Source is the contract a calendar provider implements. It mirrors the task
// provider contract with meeting operations in place of task operations.
type Source interface {
	Name() string
	Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error)
	GetMeetings(ctx context.Context, id provider.Identity) ([]Meeting, error)
	CreateMeeting(ctx context.Context, id provider.Identity, meeting NewMeeting) (*Meeting, error)
	CreateBusyBlock(ctx context.Context, id provider.Identity, block BusyBlock) (string, error)
}

// Aggregator routes calendar operations to the provider named in the account
// identity.
type Aggregator struct {
	accounts *store.AccountStore
	sources  map[string]Source
	logger   *slog.Logger
}

// NewAggregator creates an aggregator with no sources registered.
func NewAggregator(accounts *store.AccountStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		accounts: accounts,
		sources:  make(map[string]Source),
		logger:   logger,
	}
}

// Register adds a calendar source under its provider name.
func (a *Aggregator) Register(src Source) {
	a.sources[src.Name()] = src
}

func (a *Aggregator) route(id provider.Identity) (Source, error) {
	src, ok := a.sources[id.Provider]
	if !ok {
		return nil, fmt.Errorf("no calendar provider registered for %q", id.Provider)
	}
	return src, nil
}

// Authenticate checks the account's credentials with its provider.
func (a *Aggregator) Authenticate(ctx context.Context, id provider.Identity) (*provider.AuthRedirect, error) {
	src, err := a.route(id)
	if err != nil {
		return nil, err
	}
	return src.Authenticate(ctx, id)
}

// GetMeetings fetches and normalizes the account's upcoming meetings.
func (a *Aggregator) GetMeetings(ctx context.Context, id provider.Identity) ([]Meeting, error) {
	src, err := a.route(id)
	if err != nil {
		return nil, err
	}
	return src.GetMeetings(ctx, id)
}

// CreateMeeting creates an event in the account's calendar.
func (a *Aggregator) CreateMeeting(ctx context.Context, id provider.Identity, meeting NewMeeting) (*Meeting, error) {
	src, err := a.route(id)
	if err != nil {
		return nil, err
	}
	return src.CreateMeeting(ctx, id, meeting)
}

// CreateBusyBlock creates a synced busy placeholder in the account's
// calendar.
func (a *Aggregator) CreateBusyBlock(ctx context.Context, id provider.Identity, block BusyBlock) (string, error) {
	src, err := a.route(id)
	if err != nil {
		return "", err
	}
	return src.CreateBusyBlock(ctx, id, block)
}

// ListUserMeetings aggregates meetings across every calendar account the user
// has linked. A failing account is logged and skipped so one broken calendar
// never hides the others.
func (a *Aggregator) ListUserMeetings(ctx context.Context, userID string) ([]Meeting, error) {
	accounts, err := a.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var meetings []Meeting
	for _, account := range accounts {
		src, ok := a.sources[account.Provider]
		if !ok {
			continue
		}
		id := provider.Identity{UserID: userID, Provider: account.Provider, Email: account.Email}
		fetched, err := src.GetMeetings(ctx, id)
		if err != nil {
			a.logger.Warn("skipping calendar account",
				logging.Provider(account.Provider),
				logging.Account(account.Email),
				logging.Err(err))
			continue
		}
		meetings = append(meetings, fetched...)
	}
	return meetings, nil
}
