package store

import "time"

// List types for task ordering partitions.
const (
	ListPrioritized   = "prioritized"
	ListUnprioritized = "unprioritized"
)

// Account stores the credentials for one provider account linked to one
// application user. Uniqueness is enforced over (user, provider, email);
// a user may link several accounts per provider.
type Account struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"not null;index;uniqueIndex:uq_account_identity" json:"user_id"`

	// Provider is the provider name, e.g. "todoist", "google_tasks", "o365"
	Provider string `gorm:"size:50;not null;uniqueIndex:uq_account_identity" json:"provider"`

	// Email is the email address of the provider account
	Email string `gorm:"size:255;not null;uniqueIndex:uq_account_identity" json:"email"`

	// Credentials; providers populate only the fields they need
	APIKey       string `gorm:"column:api_key" json:"-"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	TokenURI     string `gorm:"column:token_uri" json:"-"`
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`

	// Scopes is the granted scope set, stored space-joined. Use ScopeList
	// and AccountFields.Scopes; nothing else reads this column directly.
	Scopes string `json:"-"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LastSync  *time.Time `json:"last_sync,omitempty"`

	// NeedsReauth is set when a refresh or API call fails with an auth-class
	// error, and cleared only by a fresh successful authorization
	NeedsReauth bool `gorm:"not null;default:false" json:"needs_reauth"`

	// IsPrimary marks the user's primary account; the first account created
	// for a user becomes primary
	IsPrimary bool `gorm:"not null;default:false" json:"is_primary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScopeList returns the granted scopes as a slice, splitting the stored
// space-joined form.
func (a *Account) ScopeList() []string {
	return splitScopes(a.Scopes)
}

// HasRefreshToken reports whether the account can be refreshed without user
// interaction.
func (a *Account) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// Task tracks one provider task reconciled into local state. Identity is
// (user, provider, provider task id); AccountEmail records which provider
// account the task was last seen through.
type Task struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"not null;index;uniqueIndex:uq_task_identity" json:"user_id"`

	AccountEmail   string `gorm:"size:255;index" json:"account_email,omitempty"`
	Provider       string `gorm:"size:50;not null;uniqueIndex:uq_task_identity" json:"provider"`
	ProviderTaskID string `gorm:"size:255;not null;uniqueIndex:uq_task_identity" json:"provider_task_id"`

	Title       string `gorm:"size:500;not null" json:"title"`
	Description string `json:"description,omitempty"`

	// Status is "active" or "completed"
	Status string `gorm:"size:50;not null" json:"status"`

	DueDate  *time.Time `json:"due_date,omitempty"`
	Priority int        `json:"priority,omitempty"`

	ProjectID   string `gorm:"size:255" json:"project_id,omitempty"`
	ProjectName string `gorm:"size:255" json:"project_name,omitempty"`
	ParentID    string `gorm:"size:255" json:"parent_id,omitempty"`
	SectionID   string `gorm:"size:255" json:"section_id,omitempty"`

	// ListType is "prioritized" or "unprioritized"; Position is the dense
	// zero-based ordinal within the (user, list_type) partition
	ListType string `gorm:"size:50;not null;default:unprioritized;index:idx_task_list" json:"list_type"`
	Position int    `gorm:"not null;default:0" json:"position"`

	// ContentHash detects remote changes without field-by-field comparison
	ContentHash string `gorm:"size:64;not null" json:"-"`

	LastSynced time.Time `gorm:"not null" json:"last_synced"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
