package provider

import (
	"context"
	"fmt"
	"time"
)

// Provider names as stored in account records.
const (
	Todoist     = "todoist"
	GoogleTasks = "google_tasks"
	Outlook     = "outlook"
	Local       = "local"
	Google      = "google"
	O365        = "o365"
)

// Task status values, normalized across providers.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Identity identifies one provider account belonging to one application user.
// A user may hold several accounts for the same provider (two Google
// calendars, say) and accounts across providers.
type Identity struct {
	// UserID is the application user identifier
	UserID string

	// Provider is the provider name (e.g., "todoist", "google_tasks")
	Provider string

	// Email is the email address of the provider account
	Email string
}

// String returns a log-safe description of the identity.
func (id Identity) String() string {
	return fmt.Sprintf("%s account for user %s", id.Provider, id.UserID)
}

// AuthRedirect signals that an account requires an interactive authorization
// or setup flow. It is a normal return value, never an error: accounts that
// were never authorized or whose tokens expired without a refresh token are
// an expected part of operation.
type AuthRedirect struct {
	// Provider is the provider that needs authorization
	Provider string `json:"provider"`

	// URL is the redirect or setup target the user must visit
	URL string `json:"url"`
}

// TaskSnapshot is a provider's view of a single task, normalized to the
// common shape. It carries no local bookkeeping; reconciliation maps it onto
// stored task records.
type TaskSnapshot struct {
	// ID is the provider's native task id
	ID string

	Title       string
	Description string

	// Status is "active" or "completed"
	Status string

	// Due is the due date, if any
	Due *time.Time

	// Priority is the provider-normalized ordinal priority (1=low .. 4=urgent)
	Priority int

	ProjectID   string
	ProjectName string
	ParentID    string
	SectionID   string
}

// NewTask describes a task to create at a provider.
type NewTask struct {
	Title       string
	Description string
	Due         *time.Time
	Priority    int
	ProjectID   string
}

// TaskSource is the capability contract every task provider implements.
//
// Authenticate returns a nil redirect when stored credentials are currently
// usable (including a successful silent refresh). FetchTasks and CreateTask
// return errors for every API, network, or auth failure; they never return
// silently truncated data. RefreshToken fails when the refresh token is
// absent, invalid, or rejected by the provider.
type TaskSource interface {
	// Name returns the provider name
	Name() string

	// Authenticate checks credentials for the account, returning a redirect
	// target when interactive (re)authorization is required
	Authenticate(ctx context.Context, id Identity) (*AuthRedirect, error)

	// FetchTasks returns the provider's current task snapshot for the account
	FetchTasks(ctx context.Context, id Identity) ([]TaskSnapshot, error)

	// CreateTask creates a task at the provider
	CreateTask(ctx context.Context, id Identity, task NewTask) (*TaskSnapshot, error)

	// RefreshToken refreshes the account's access token
	RefreshToken(ctx context.Context, id Identity) error
}
