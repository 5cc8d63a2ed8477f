package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/logging"
)

// ErrNoProviders is returned when text generation is requested with no
// provider configured.
var ErrNoProviders = errors.New("no ai providers configured")

// Manager tries a fixed preference order of text generators, stopping at the
// first success.
type Manager struct {
	providers []TextGenerator
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
}

// NewManager creates a manager over the given generators. Order matters: the
// first provider is preferred, later ones are fallbacks.
func NewManager(metrics *instrumentation.Metrics, logger *slog.Logger, providers ...TextGenerator) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, metrics: metrics, logger: logger}
}

// Providers returns the configured provider names in preference order.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return names
}

// GenerateText runs the prompt through the providers in preference order and
// returns the first successful result. All failures together produce one
// error.
func (m *Manager) GenerateText(ctx context.Context, prompt string) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, p := range m.providers {
		text, err := p.GenerateText(ctx, prompt)
		if err == nil {
			m.metrics.RecordAIGeneration(ctx, p.Name(), "success")
			return text, nil
		}
		m.metrics.RecordAIGeneration(ctx, p.Name(), "error")
		m.logger.Warn("text generation failed",
			logging.Provider(p.Name()), logging.Err(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all ai providers failed: %w", errors.Join(errs...))
}
