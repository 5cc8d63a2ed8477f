package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
)

// AccountStore persists provider account credentials.
type AccountStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// AccountFields carries a partial credential update. Nil pointers leave the
// stored value untouched, so a token refresh can update the access token
// without clobbering the client secret written at authorization time.
type AccountFields struct {
	APIKey       *string
	AccessToken  *string
	RefreshToken *string
	TokenURI     *string
	ClientID     *string
	ClientSecret *string
	Scopes       []string
	ExpiresAt    *time.Time

	// NeedsReauth defaults to false on upsert: writing fresh credentials
	// clears a stale reauth flag unless the caller says otherwise
	NeedsReauth *bool
}

// Get returns the account for the given identity, or ErrNotFound.
func (s *AccountStore) Get(ctx context.Context, id provider.Identity) (*Account, error) {
	var account Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert creates or partially updates the account for the given identity.
// The first account created for a user becomes the primary account. The
// last-sync timestamp is bumped on every write, and needs_reauth is cleared
// unless the caller explicitly sets it.
func (s *AccountStore) Upsert(ctx context.Context, id provider.Identity, fields AccountFields) (*Account, error) {
	var result *Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account Account
		err := tx.Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
			First(&account).Error

		created := false
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = Account{
				ID:       uuid.NewString(),
				UserID:   id.UserID,
				Provider: id.Provider,
				Email:    id.Email,
			}
			created = true
		} else if err != nil {
			return err
		}

		applyAccountFields(&account, fields)
		now := time.Now().UTC()
		account.LastSync = &now

		if created {
			// First account for the user becomes primary
			var primaries int64
			if err := tx.Model(&Account{}).
				Where("user_id = ? AND is_primary = ?", id.UserID, true).
				Count(&primaries).Error; err != nil {
				return err
			}
			account.IsPrimary = primaries == 0
			if account.IsPrimary {
				s.logger.Info("marking first account as primary",
					logging.Provider(id.Provider), logging.UserHash(id.UserID))
			}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(&account).Error; err != nil {
				return err
			}
		}

		result = &account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Touch updates the account's last-sync timestamp.
func (s *AccountStore) Touch(ctx context.Context, id provider.Identity) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
		Update("last_sync", &now).Error
}

// SetLastSync records an explicit sync time.
func (s *AccountStore) SetLastSync(ctx context.Context, id provider.Identity, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
		Update("last_sync", &at).Error
}

// SetNeedsReauth flags or clears the account's reauthorization requirement.
func (s *AccountStore) SetNeedsReauth(ctx context.Context, id provider.Identity, needsReauth bool) error {
	return s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
		Update("needs_reauth", needsReauth).Error
}

// ListByUser returns all accounts for an application user.
func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider, email").
		Find(&accounts).Error
	return accounts, err
}

// ListStale returns every account whose last sync is missing or older than
// the cutoff. The token refresh scheduler feeds on this.
func (s *AccountStore) ListStale(ctx context.Context, olderThan time.Time) ([]Account, error) {
	var accounts []Account
	err := s.db.WithContext(ctx).
		Where("last_sync IS NULL OR last_sync < ?", olderThan).
		Find(&accounts).Error
	return accounts, err
}

// Delete removes the account for the given identity.
func (s *AccountStore) Delete(ctx context.Context, id provider.Identity) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND email = ?", id.UserID, id.Provider, id.Email).
		Delete(&Account{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func applyAccountFields(account *Account, fields AccountFields) {
	if fields.APIKey != nil {
		account.APIKey = *fields.APIKey
	}
	if fields.AccessToken != nil {
		account.AccessToken = *fields.AccessToken
	}
	if fields.RefreshToken != nil {
		account.RefreshToken = *fields.RefreshToken
	}
	if fields.TokenURI != nil {
		account.TokenURI = *fields.TokenURI
	}
	if fields.ClientID != nil {
		account.ClientID = *fields.ClientID
	}
	if fields.ClientSecret != nil {
		account.ClientSecret = *fields.ClientSecret
	}
	if fields.Scopes != nil {
		account.Scopes = joinScopes(fields.Scopes)
	}
	if fields.ExpiresAt != nil {
		account.ExpiresAt = fields.ExpiresAt
	}
	if fields.NeedsReauth != nil {
		account.NeedsReauth = *fields.NeedsReauth
	} else {
		account.NeedsReauth = false
	}
}

// Ptr returns a pointer to v, for building partial AccountFields updates.
func Ptr[T any](v T) *T { return &v }
