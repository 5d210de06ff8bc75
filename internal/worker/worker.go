// Package worker provides async batch audit persistence.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/creditx-oss/creditx/internal/domain"
)

// AuditWorker persists batch completion events off the request path.
// API handlers publish to the event bus and return immediately; the
// worker consumes the events and writes audit rows.
type AuditWorker struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewAuditWorker creates a new audit worker.
func NewAuditWorker(bus domain.EventBus, repo domain.Repository) *AuditWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuditWorker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the batch completed topic.
func (w *AuditWorker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBatchCompleted, w.handleBatchCompleted)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("audit worker started",
		"topic", domain.TopicBatchCompleted,
	)

	return nil
}

// handleBatchCompleted persists one batch audit row.
func (w *AuditWorker) handleBatchCompleted(ctx context.Context, msg *domain.Message) error {
	var event domain.BatchCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse batch completed event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	audit := &domain.BatchAudit{
		ID:             event.BatchID,
		Operation:      event.Operation,
		RecordCount:    event.RecordCount,
		FailureCount:   event.FailureCount,
		WeightsVersion: event.WeightsVersion,
		DurationMs:     event.DurationMs,
		CreatedAt:      time.Now(),
	}

	if err := w.repo.SaveBatchAudit(ctx, audit); err != nil {
		slog.Error("failed to save batch audit",
			"batch_id", event.BatchID,
			"error", err,
		)
		return err
	}

	slog.Debug("batch audit saved",
		"batch_id", event.BatchID,
		"operation", event.Operation,
		"record_count", event.RecordCount,
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *AuditWorker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("audit worker stopped")
	return nil
}
