package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrProvider = "provider"
	attrResult   = "result"
	attrChange   = "change"
	attrAccount  = "account"
)

// Metrics provides methods for recording observability metrics. The zero
// value is a no-op recorder, as is a nil receiver; callers never need to
// check whether instrumentation is enabled.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Sync metrics
	syncOutcomesTotal      metric.Int64Counter
	reconcileDuration      metric.Float64Histogram
	reconcileChangesTotal  metric.Int64Counter
	tokenRefreshTotal      metric.Int64Counter
	aiGenerationsTotal     metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments registered.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.syncOutcomesTotal, err = meter.Int64Counter(
		"sync_account_outcomes_total",
		metric.WithDescription("Per-account sync outcomes by provider and status"),
		metric.WithUnit("{account}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_account_outcomes_total counter: %w", err)
	}

	m.reconcileDuration, err = meter.Float64Histogram(
		"reconcile_duration_seconds",
		metric.WithDescription("Duration of one account's fetch and reconcile pass"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile_duration_seconds histogram: %w", err)
	}

	m.reconcileChangesTotal, err = meter.Int64Counter(
		"reconcile_changes_total",
		metric.WithDescription("Task records created, updated, and deleted by reconciliation"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile_changes_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"token_refresh_total",
		metric.WithDescription("Total number of token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refresh_total counter: %w", err)
	}

	m.aiGenerationsTotal, err = meter.Int64Counter(
		"ai_generations_total",
		metric.WithDescription("Total number of AI text generation attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai_generations_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code,
// and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSyncOutcome records the outcome of one account's sync.
// Status is one of "ok", "error", "needs_reauth".
func (m *Metrics) RecordSyncOutcome(ctx context.Context, providerName, status string) {
	if m == nil || m.syncOutcomesTotal == nil {
		return
	}

	m.syncOutcomesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, providerName),
		attribute.String(attrStatus, status),
	))
}

// ObserveReconcileDuration records how long one account's fetch and
// reconcile pass took.
func (m *Metrics) ObserveReconcileDuration(ctx context.Context, providerName string, duration time.Duration) {
	if m == nil || m.reconcileDuration == nil {
		return
	}

	m.reconcileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrProvider, providerName),
	))
}

// RecordReconcileChanges records the task changes one reconciliation pass
// applied, split by change kind.
func (m *Metrics) RecordReconcileChanges(ctx context.Context, providerName string, created, updated, deleted int) {
	if m == nil || m.reconcileChangesTotal == nil {
		return
	}

	for change, count := range map[string]int{
		"created": created,
		"updated": updated,
		"deleted": deleted,
	} {
		if count == 0 {
			continue
		}
		m.reconcileChangesTotal.Add(ctx, int64(count), metric.WithAttributes(
			attribute.String(attrProvider, providerName),
			attribute.String(attrChange, change),
		))
	}
}

// RecordTokenRefresh records a token refresh attempt.
// Result is one of "success", "transient_failure", "fatal_failure".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, providerName, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, providerName),
		attribute.String(attrResult, result),
	))
}

// RecordAIGeneration records an AI text generation attempt against one
// provider. Result is "success" or "error".
func (m *Metrics) RecordAIGeneration(ctx context.Context, providerName, result string) {
	if m == nil || m.aiGenerationsTotal == nil {
		return
	}

	m.aiGenerationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, providerName),
		attribute.String(attrResult, result),
	))
}

// RecordSyncOutcomeWithAccount is the detailed variant including the account
// label when detailedLabels is enabled.
func (m *Metrics) RecordSyncOutcomeWithAccount(ctx context.Context, providerName, status, account string) {
	if m == nil || m.syncOutcomesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, providerName),
		attribute.String(attrStatus, status),
	}
	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.syncOutcomesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
