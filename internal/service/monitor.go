package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mediarelay/internal/metrics"
	"mediarelay/internal/models"

	"github.com/sirupsen/logrus"
)

// BackpressureMonitor watches queue depth on every ingestion event and
// warns the reviewer privately when configured depths are exceeded. It is
// internally throttled to one warning per interval; the timestamp is
// stamped whether or not delivery succeeds, so a flaky send path cannot
// cause a warning storm.
type BackpressureMonitor struct {
	mu       sync.Mutex
	lastWarn time.Time

	queue      *PendingQueue
	dispatcher *Dispatcher
	logger     *logrus.Logger

	reviewerID       int64
	interval         time.Duration
	mediaWarnCount   int
	forwardWarnCount int

	now func() time.Time
}

func NewBackpressureMonitor(queue *PendingQueue, dispatcher *Dispatcher, cfg *models.Config, logger *logrus.Logger) *BackpressureMonitor {
	return &BackpressureMonitor{
		queue:            queue,
		dispatcher:       dispatcher,
		logger:           logger,
		reviewerID:       cfg.Relay.ReviewerID,
		interval:         cfg.WarnInterval(),
		mediaWarnCount:   cfg.Backpressure.MediaWarnCount,
		forwardWarnCount: cfg.Backpressure.ForwardWarnCount,
		now:              time.Now,
	}
}

// Check inspects the queue depths and sends at most one combined warning
// per interval.
func (m *BackpressureMonitor) Check(ctx context.Context) {
	if m.reviewerID == 0 || m.interval <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastWarn) < m.interval {
		return
	}

	mediaDepth := m.queue.CountWhere(matchBatchableMedia)
	forwardDepth := m.queue.CountWhere(matchForward)

	var lines []string
	if m.mediaWarnCount > 0 && mediaDepth >= m.mediaWarnCount {
		lines = append(lines, fmt.Sprintf("[warning] media queue has piled up to %d items, please clear it before links go stale", mediaDepth))
	}
	if m.forwardWarnCount > 0 && forwardDepth >= m.forwardWarnCount {
		lines = append(lines, fmt.Sprintf("[warning] record queue has piled up to %d items, please process it", forwardDepth))
	}
	if len(lines) == 0 {
		return
	}

	m.lastWarn = m.now()
	metrics.GetRegistry().IncrementCounter("relay_warnings_sent_total", nil, "Backpressure warnings sent to the reviewer")

	if err := m.dispatcher.SendPrivateText(ctx, m.reviewerID, strings.Join(lines, "\n")); err != nil {
		m.logger.WithError(err).Warn("Backpressure warning delivery failed")
		return
	}
	m.logger.WithFields(logrus.Fields{
		"mediaDepth":   mediaDepth,
		"forwardDepth": forwardDepth,
	}).Info("Backpressure warning sent to reviewer")
}
