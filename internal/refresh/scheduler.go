package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

// Defaults for the refresh cycle. Access tokens typically live one hour, so
// refreshing everything not synced for 45 minutes keeps them warm.
const (
	DefaultInterval  = 30 * time.Minute
	DefaultStaleness = 45 * time.Minute
)

// TokenRefresher refreshes one account's access token. Both task and
// calendar sources satisfy this.
type TokenRefresher interface {
	Name() string
	RefreshToken(ctx context.Context, id provider.Identity) error
}

// CycleStats counts the outcomes of one refresh cycle.
type CycleStats struct {
	Refreshed int
	Failed    int
	Skipped   int
}

// Scheduler proactively refreshes tokens for stale accounts on a fixed
// timer. It runs as a single background task for the lifetime of the
// process.
type Scheduler struct {
	accounts   *store.AccountStore
	refreshers map[string]TokenRefresher
	interval   time.Duration
	staleness  time.Duration
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// NewScheduler creates a scheduler with the default interval and staleness
// cutoff.
func NewScheduler(accounts *store.AccountStore, metrics *instrumentation.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		accounts:   accounts,
		refreshers: make(map[string]TokenRefresher),
		interval:   DefaultInterval,
		staleness:  DefaultStaleness,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register adds a refresher under its provider name.
func (s *Scheduler) Register(r TokenRefresher) {
	s.refreshers[r.Name()] = r
}

// SetInterval overrides the cycle interval.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval > 0 {
		s.interval = interval
	}
}

// Run executes refresh cycles until the context is cancelled. The first
// cycle starts immediately. A failing cycle never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("token refresh scheduler started",
		slog.Duration("interval", s.interval),
		slog.Duration("staleness", s.staleness))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("token refresh scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// runCycle refreshes every stale account once. Accounts fail independently;
// a panic in one provider's refresh is contained to that account.
func (s *Scheduler) runCycle(ctx context.Context) CycleStats {
	var stats CycleStats

	cutoff := time.Now().UTC().Add(-s.staleness)
	accounts, err := s.accounts.ListStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("listing stale accounts failed", logging.Err(err))
		return stats
	}
	if len(accounts) == 0 {
		return stats
	}

	s.logger.Info("refreshing stale accounts", slog.Int("count", len(accounts)))

	for _, account := range accounts {
		if ctx.Err() != nil {
			return stats
		}

		logger := s.logger.With(
			logging.Provider(account.Provider),
			logging.Account(account.Email))

		// Flagged accounts need user intervention, not another attempt
		if account.NeedsReauth {
			stats.Skipped++
			continue
		}
		if !account.HasRefreshToken() {
			stats.Skipped++
			continue
		}
		refresher, ok := s.refreshers[account.Provider]
		if !ok {
			stats.Skipped++
			continue
		}

		id := provider.Identity{UserID: account.UserID, Provider: account.Provider, Email: account.Email}
		if err := s.refreshAccount(ctx, refresher, id, logger); err != nil {
			stats.Failed++
			continue
		}
		stats.Refreshed++
	}

	s.logger.Info("token refresh cycle finished",
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped))
	return stats
}

func (s *Scheduler) refreshAccount(ctx context.Context, refresher TokenRefresher, id provider.Identity, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during token refresh",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = &provider.TransientError{Op: "refresh_token", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := refresher.RefreshToken(ctx, id); err != nil {
		if provider.IsFatalAuth(err) {
			// Refresh token rejected; only interactive reauth can fix this
			if markErr := s.accounts.SetNeedsReauth(ctx, id, true); markErr != nil {
				logger.Error("flagging account for reauth failed", logging.Err(markErr))
			}
			s.metrics.RecordTokenRefresh(ctx, id.Provider, "fatal_failure")
			logger.Warn("token refresh rejected",
				logging.Status(logging.StatusNeedsReauth), logging.Err(err))
			return err
		}

		// Transient failures are left for the next cycle
		s.metrics.RecordTokenRefresh(ctx, id.Provider, "transient_failure")
		logger.Warn("token refresh failed",
			logging.Status(logging.StatusError), logging.Err(err))
		return err
	}

	if err := s.accounts.Touch(ctx, id); err != nil {
		logger.Error("recording refresh time failed", logging.Err(err))
	}
	s.metrics.RecordTokenRefresh(ctx, id.Provider, "success")
	logger.Info("token refreshed", logging.Status(logging.StatusSuccess))
	return nil
}
