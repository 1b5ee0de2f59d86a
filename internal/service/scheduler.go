package service

import (
	"context"
	"sync"

	"mediarelay/internal/metrics"
	"mediarelay/internal/models"
	"mediarelay/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SnapshotSaver persists the current queue and ledger state. Implemented
// by Relay so every component persists through one path.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context)
}

// BatchScheduler drains the queue autonomously once kind-specific depth
// thresholds are crossed. A single mutex serializes cycles system-wide:
// overlapping triggers block, then re-evaluate current queue state, so
// the same item can never be dispatched twice.
type BatchScheduler struct {
	mu sync.Mutex

	queue      *PendingQueue
	dispatcher *Dispatcher
	saver      SnapshotSaver
	notifier   *Notifier
	logger     *logrus.Logger

	enabled   bool
	threshold int
}

func NewBatchScheduler(queue *PendingQueue, dispatcher *Dispatcher, saver SnapshotSaver, notifier *Notifier, cfg *models.Config, logger *logrus.Logger) *BatchScheduler {
	return &BatchScheduler{
		queue:      queue,
		dispatcher: dispatcher,
		saver:      saver,
		notifier:   notifier,
		logger:     logger,
		enabled:    cfg.AutoPack.Enabled,
		threshold:  cfg.AutoPack.Threshold,
	}
}

// TriggerCheck runs one scheduler cycle. Safe to fire from any ingestion
// event; disabled entirely when auto-pack is off or the threshold is
// non-positive.
func (s *BatchScheduler) TriggerCheck(ctx context.Context) {
	if !s.enabled || s.threshold <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "scheduler.cycle",
		attribute.Int("threshold", s.threshold))
	defer span.End()

	s.runMediaBranch(ctx)
	s.runForwardBranch(ctx)
}

// runMediaBranch drains threshold-sized slices of media items through the
// merged-batch strategy. Any destination failure aborts the branch: a
// failing batch usually means a systemically broken item that would fail
// identically on retry, so automatic attempts stop until a human steps in.
func (s *BatchScheduler) runMediaBranch(ctx context.Context) {
	for s.queue.CountWhere(matchBatchableMedia) >= s.threshold {
		batch := s.queue.OldestWhere(matchBatchableMedia, s.threshold)
		s.logger.WithField("count", len(batch)).Info("Media threshold reached, auto-packing batch")

		failed := s.dispatcher.MergeForward(ctx, batch)
		if len(failed) > 0 {
			s.logger.WithField("failedGroups", failed).Warn("Auto-pack blocked, keeping batch queued for manual intervention")
			metrics.GetRegistry().IncrementCounter("relay_autopack_aborts_total", nil, "Auto-pack cycles aborted on dispatch failure")
			return
		}

		s.queue.RemoveIDs(idSet(batch))
		s.saver.SaveSnapshot(ctx)
		s.notifier.RequestRefresh()
		metrics.GetRegistry().AddToCounter("relay_items_dispatched_total", float64(len(batch)),
			map[string]string{"strategy": "merge"}, "Items dispatched to destinations")
		s.logger.Info("Auto-pack batch dispatched and dequeued")
	}
}

// runForwardBranch passthrough-forwards threshold-sized slices of record
// items. Passthrough failures are per-item and logged, never batch-fatal,
// so the slice is removed unconditionally.
func (s *BatchScheduler) runForwardBranch(ctx context.Context) {
	for s.queue.CountWhere(matchForward) >= s.threshold {
		batch := s.queue.OldestWhere(matchForward, s.threshold)
		s.logger.WithField("count", len(batch)).Info("Forward-record threshold reached, auto-forwarding batch")

		for _, item := range batch {
			s.dispatcher.PassthroughForward(ctx, item.SourceMessageID)
		}

		s.queue.RemoveIDs(idSet(batch))
		s.saver.SaveSnapshot(ctx)
		s.notifier.RequestRefresh()
		metrics.GetRegistry().AddToCounter("relay_items_dispatched_total", float64(len(batch)),
			map[string]string{"strategy": "passthrough"}, "Items dispatched to destinations")
		s.logger.Info("Forward-record batch dispatched and dequeued")
	}
}
