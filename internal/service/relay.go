package service

import (
	"context"
	"fmt"
	"time"

	relayerrors "mediarelay/internal/errors"
	"mediarelay/internal/metrics"
	"mediarelay/internal/models"
	"mediarelay/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

// SnapshotStore is the persistence surface the relay needs for state that
// must survive a restart.
type SnapshotStore interface {
	SaveQueueSnapshot(ctx context.Context, items []*models.PendingItem, fingerprints []string) error
	LoadQueueSnapshot(ctx context.Context) ([]*models.PendingItem, []string, error)
}

// Relay owns the shared mutable state of the system: the pending queue,
// the dedup ledger and the caches. Every cross-component mutation goes
// through its operations; it implements the gateway client's event and
// session callbacks.
type Relay struct {
	cfg        *models.Config
	logger     *logrus.Logger
	queue      *PendingQueue
	ledger     *DedupLedger
	classifier *Classifier
	dispatcher *Dispatcher
	scheduler  *BatchScheduler
	monitor    *BackpressureMonitor
	notifier   *Notifier
	info       *GroupInfoService
	store      SnapshotStore
	gateway    GatewayCaller
}

func NewRelay(cfg *models.Config, gateway GatewayCaller, store SnapshotStore, info *GroupInfoService, logger *logrus.Logger) *Relay {
	queue := NewPendingQueue()
	ledger := NewDedupLedger(cfg.Queue.DedupCapacity)
	notifier := NewNotifier()
	dispatcher := NewDispatcher(gateway, cfg, logger)

	r := &Relay{
		cfg:        cfg,
		logger:     logger,
		queue:      queue,
		ledger:     ledger,
		classifier: NewClassifier(ledger, logger),
		dispatcher: dispatcher,
		notifier:   notifier,
		info:       info,
		store:      store,
		gateway:    gateway,
	}
	r.scheduler = NewBatchScheduler(queue, dispatcher, r, notifier, cfg, logger)
	r.monitor = NewBackpressureMonitor(queue, dispatcher, cfg, logger)
	return r
}

// Queue exposes the pending queue for the ops API.
func (r *Relay) Queue() *PendingQueue { return r.queue }

// Notifier exposes the front-end signals.
func (r *Relay) Notifier() *Notifier { return r.notifier }

// Dispatcher exposes the dispatch strategies for operator-triggered sends.
func (r *Relay) Dispatcher() *Dispatcher { return r.dispatcher }

// Restore loads the persisted queue snapshot into memory. Called once at
// startup before the session starts.
func (r *Relay) Restore(ctx context.Context) error {
	items, fingerprints, err := r.store.LoadQueueSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queue snapshot: %w", err)
	}
	r.queue.Restore(items)
	r.ledger.Restore(fingerprints)
	r.logger.WithFields(logrus.Fields{
		"items":        len(items),
		"fingerprints": len(fingerprints),
	}).Info("Queue snapshot restored")
	r.updateDepthGauges()
	return nil
}

// SaveSnapshot persists the current queue and ledger. Persistence failures
// are logged, never propagated: the in-memory state stays authoritative.
func (r *Relay) SaveSnapshot(ctx context.Context) {
	if err := r.store.SaveQueueSnapshot(ctx, r.queue.Snapshot(), r.ledger.Entries()); err != nil {
		r.logger.WithError(err).Error("Queue snapshot persist failed")
	}
	r.updateDepthGauges()
}

// HandleGroupMessage is the ingestion path, called from the socket read
// loop for every inbound group message. It must return quickly: scheduler
// and monitor checks are spawned, never run inline.
func (r *Relay) HandleGroupMessage(ctx context.Context, groupID, messageID int64, segments []types.Segment) {
	if !r.cfg.IsSourceGroup(groupID) {
		return
	}

	item, err := r.classifier.Classify(segments)
	if err != nil {
		if relayerrors.IsCode(err, relayerrors.ErrCodeValidationRejected) {
			r.logger.WithError(err).WithField("group", groupID).Debug("Inbound message not captured")
			metrics.GetRegistry().IncrementCounter("relay_items_rejected_total", nil, "Inbound messages rejected by the classifier")
		} else {
			r.logger.WithError(err).WithField("group", groupID).Error("Classification failed")
		}
		return
	}

	item.SourceMessageID = messageID
	r.queue.Append(item)
	r.SaveSnapshot(ctx)
	r.notifier.RequestRefresh()
	metrics.GetRegistry().IncrementCounter("relay_items_ingested_total",
		map[string]string{"kind": string(item.Kind)}, "Items captured into the pending queue")

	r.logger.WithFields(logrus.Fields{
		"kind":  item.Kind,
		"group": groupID,
	}).Info("Captured new item into queue")

	r.spawn("scheduler", func() { r.scheduler.TriggerCheck(context.WithoutCancel(ctx)) })
	r.spawn("monitor", func() { r.monitor.Check(context.WithoutCancel(ctx)) })
}

// HandleProfileData consumes group/user profile pushes into the display
// metadata cache.
func (r *Relay) HandleProfileData(ctx context.Context, profile types.ProfileData) {
	if profile.GroupID != 0 && profile.GroupName != "" {
		r.info.UpdateGroup(ctx, profile.GroupID, profile.GroupName)
		r.notifier.RequestRefresh()
	}
	if profile.UserID != 0 && profile.Nickname != "" && profile.UserID == r.cfg.Relay.ReviewerID {
		r.info.UpdateUser(ctx, profile.UserID, profile.Nickname)
		r.notifier.RequestRefresh()
	}
}

// SessionConnected runs on every successful gateway connect. A long outage
// means staged media links are presumed stale, so the queue is expired
// before ingestion resumes; then display metadata refreshes are issued
// fire-and-forget.
func (r *Relay) SessionConnected(ctx context.Context, outage time.Duration) {
	autoClear := r.cfg.AutoClearDuration()
	if autoClear > 0 && outage >= autoClear && r.queue.Len() > 0 {
		discarded := r.queue.Clear()
		r.SaveSnapshot(ctx)
		r.notifier.RequestRefresh()
		r.notifier.Notify(SeverityWarning, fmt.Sprintf("queue expired after %s offline, %d stale items discarded", outage.Round(time.Second), discarded))
		r.logger.WithFields(logrus.Fields{
			"outage":    outage,
			"discarded": discarded,
		}).Warn("Pending queue expired after long disconnect")
	}

	if outage > 0 {
		metrics.GetRegistry().IncrementCounter("relay_reconnects_total", nil, "Gateway reconnects")
	}

	for _, gid := range r.cfg.AllGroups() {
		_, _ = r.gateway.Call(ctx, "get_group_info", map[string]interface{}{
			"group_id": gid,
			"no_cache": true,
		}, false, 0)
	}
	if r.cfg.Relay.ReviewerID != 0 {
		_, _ = r.gateway.Call(ctx, "get_stranger_info", map[string]interface{}{
			"user_id":  r.cfg.Relay.ReviewerID,
			"no_cache": true,
		}, false, 0)
	}
}

// SessionLost runs once per disconnect episode.
func (r *Relay) SessionLost(ctx context.Context) {
	r.notifier.Notify(SeverityError, "gateway connection lost")
}

// TriggerSchedulerCheck is the operator-facing way to force a scheduler
// cycle, e.g. after changing thresholds.
func (r *Relay) TriggerSchedulerCheck(ctx context.Context) {
	r.spawn("scheduler", func() { r.scheduler.TriggerCheck(context.WithoutCancel(ctx)) })
}

// ManualMerge dispatches the given queued items as one merged batch. The
// queue cleanup is all-or-nothing: items are removed only when every
// destination accepted one of the two payload tiers.
func (r *Relay) ManualMerge(ctx context.Context, ids []string) ([]int64, error) {
	items := r.queue.GetByIDs(ids)
	if len(items) == 0 {
		return nil, relayerrors.New(relayerrors.ErrCodeValidationRejected, "no matching queued items")
	}

	failed := r.dispatcher.MergeForward(ctx, items)
	if len(failed) > 0 {
		return failed, nil
	}

	r.queue.RemoveIDs(idSet(items))
	r.SaveSnapshot(ctx)
	r.notifier.RequestRefresh()
	return nil, nil
}

// ManualDirect sends the given items individually to every destination,
// then removes them.
func (r *Relay) ManualDirect(ctx context.Context, ids []string) error {
	items := r.queue.GetByIDs(ids)
	if len(items) == 0 {
		return relayerrors.New(relayerrors.ErrCodeValidationRejected, "no matching queued items")
	}

	r.dispatcher.DirectSend(ctx, items)
	r.queue.RemoveIDs(idSet(items))
	r.SaveSnapshot(ctx)
	r.notifier.RequestRefresh()
	return nil
}

// ManualPassthrough forwards the given items by original-message reference
// and removes them.
func (r *Relay) ManualPassthrough(ctx context.Context, ids []string) error {
	items := r.queue.GetByIDs(ids)
	if len(items) == 0 {
		return relayerrors.New(relayerrors.ErrCodeValidationRejected, "no matching queued items")
	}

	for _, item := range items {
		r.dispatcher.PassthroughForward(ctx, item.SourceMessageID)
	}
	r.queue.RemoveIDs(idSet(items))
	r.SaveSnapshot(ctx)
	r.notifier.RequestRefresh()
	return nil
}

// PushToReviewer privately forwards one queued item to the reviewer
// without dequeuing it.
func (r *Relay) PushToReviewer(ctx context.Context, id string) (bool, string) {
	items := r.queue.GetByIDs([]string{id})
	if len(items) == 0 {
		return false, "item is no longer queued"
	}
	return r.dispatcher.PushToReviewer(ctx, items[0].SourceMessageID)
}

// Depths returns the media and forward queue depths.
func (r *Relay) Depths() (media, forward int) {
	return r.queue.CountWhere(matchBatchableMedia), r.queue.CountWhere(matchForward)
}

// spawn runs a triggered task in the background with supervised error
// handling, so a panic inside a trigger cannot take down the read loop.
func (r *Relay) spawn(name string, task func()) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.WithFields(logrus.Fields{
					"task":  name,
					"panic": rec,
				}).Error("Background task panicked")
			}
		}()
		task()
	}()
}

func (r *Relay) updateDepthGauges() {
	media, forward := r.Depths()
	reg := metrics.GetRegistry()
	reg.SetGauge("relay_queue_depth", float64(media), map[string]string{"kind": "media"}, "Pending queue depth")
	reg.SetGauge("relay_queue_depth", float64(forward), map[string]string{"kind": "forward"}, "Pending queue depth")
	reg.SetGauge("relay_dedup_ledger_size", float64(r.ledger.Len()), nil, "Dedup ledger entries")
}
