package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"mediarelay/internal/constants"
	"mediarelay/internal/models"
	"mediarelay/internal/tracing"
	"mediarelay/pkg/onebot/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// GatewayCaller is the single path to the gateway shared by all dispatch
// strategies. Satisfied by onebot.Client.
type GatewayCaller interface {
	Call(ctx context.Context, action string, params interface{}, expectReply bool, timeout time.Duration) (*types.Frame, error)
}

// Dispatcher turns selected pending items into outbound gateway calls.
// Destinations are always walked sequentially with pacing delays between
// them; see constants.MergePaceDelay and friends.
type Dispatcher struct {
	gateway     GatewayCaller
	targets     []int64
	bannerTitle string
	reviewerID  int64
	callTimeout time.Duration
	logger      *logrus.Logger

	// pace is time.Sleep in production; tests replace it.
	pace func(d time.Duration)
}

func NewDispatcher(gateway GatewayCaller, cfg *models.Config, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:     gateway,
		targets:     append([]int64{}, cfg.Relay.TargetGroups...),
		bannerTitle: cfg.Relay.BannerTitle,
		reviewerID:  cfg.Relay.ReviewerID,
		callTimeout: cfg.CallTimeout(),
		logger:      logger,
		pace:        time.Sleep,
	}
}

// MergeForward packages the items into one composite forwarded record per
// destination and returns the destinations where delivery failed outright.
//
// Two payload tiers are built: synthetic nodes embedding each item's
// content, and reference-only nodes naming each item's original message.
// The synthetic tier reproduces content faithfully but fails on malformed
// or expired media; the reference tier is cheaper and more often accepted
// because the gateway re-resolves the original message itself. A
// destination counts as failed only when both tiers fail.
func (d *Dispatcher) MergeForward(ctx context.Context, items []*models.PendingItem) []int64 {
	if len(d.targets) == 0 || len(items) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "dispatch.merge_forward",
		attribute.Int("items", len(items)),
		attribute.Int("destinations", len(d.targets)))
	defer span.End()

	banner := fmt.Sprintf("📅 %s %s", time.Now().Format("2006-01-02"), d.bannerTitle)
	contentNodes := []types.Segment{
		types.NewContentNode(d.bannerTitle, constants.BannerSenderUin, banner),
	}
	for _, item := range items {
		contentNodes = append(contentNodes, types.NewContentNode(d.bannerTitle, constants.BannerSenderUin, item.Content))
	}

	var referenceNodes []types.Segment
	for _, item := range items {
		if item.SourceMessageID != 0 {
			referenceNodes = append(referenceNodes, types.NewReferenceNode(item.SourceMessageID))
		}
	}

	var failed []int64
	for _, gid := range d.targets {
		ok := d.sendForwardNodes(ctx, gid, contentNodes)
		if ok {
			d.logger.WithField("group", gid).Info("Merged batch delivered")
		} else if len(referenceNodes) > 0 {
			d.logger.WithField("group", gid).Warn("Synthetic batch rejected, falling back to reference nodes")
			if ok = d.sendForwardNodes(ctx, gid, referenceNodes); ok {
				d.logger.WithField("group", gid).Info("Reference batch delivered")
			}
		}

		if !ok {
			failed = append(failed, gid)
			d.logger.WithField("group", gid).Error("Batch delivery failed on both tiers, items stay queued")
		}

		d.pace(constants.MergePaceDelay)
	}

	return failed
}

func (d *Dispatcher) sendForwardNodes(ctx context.Context, groupID int64, nodes []types.Segment) bool {
	res, err := d.gateway.Call(ctx, "send_group_forward_msg", map[string]interface{}{
		"group_id": groupID,
		"messages": nodes,
	}, true, d.callTimeout)
	if err != nil {
		d.logger.WithError(err).WithField("group", groupID).Warn("Forward send failed")
		return false
	}
	if !res.OK() {
		d.logger.WithFields(logrus.Fields{
			"group":   groupID,
			"status":  res.Status,
			"retcode": res.RetCode,
		}).Warn("Gateway rejected forward send")
		return false
	}
	return true
}

// DirectSend delivers every item's content as its own message to every
// destination. Failures are logged and do not halt the remaining sends.
// The randomized pacing reduces the gateway's rate-limiting risk.
func (d *Dispatcher) DirectSend(ctx context.Context, items []*models.PendingItem) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.direct_send",
		attribute.Int("items", len(items)))
	defer span.End()

	for _, gid := range d.targets {
		for _, item := range items {
			_, err := d.gateway.Call(ctx, "send_group_msg", map[string]interface{}{
				"group_id": gid,
				"message":  item.Content,
			}, false, 0)
			if err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"group": gid,
					"item":  item.ID,
				}).Error("Direct send failed")
				continue
			}
			d.logger.WithFields(logrus.Fields{
				"group": gid,
				"item":  item.ID,
			}).Info("Direct send delivered")
		}
		d.pace(randomPaceDelay())
	}
}

// PassthroughForward re-sends an already received message by reference to
// every destination, leaving faithful re-presentation to the gateway.
func (d *Dispatcher) PassthroughForward(ctx context.Context, messageID int64) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.passthrough_forward",
		attribute.Int64("message_id", messageID))
	defer span.End()

	for _, gid := range d.targets {
		_, err := d.gateway.Call(ctx, "forward_group_single_msg", map[string]interface{}{
			"group_id":   gid,
			"message_id": strconv.FormatInt(messageID, 10),
		}, false, 0)
		if err != nil {
			d.logger.WithError(err).WithField("group", gid).Error("Passthrough forward failed")
		} else {
			d.logger.WithField("group", gid).Info("Passthrough forward sent")
		}
		d.pace(constants.PassthroughPaceDelay)
	}
}

// PushToReviewer privately forwards one item's original message to the
// configured reviewer. The status message is operator-facing.
func (d *Dispatcher) PushToReviewer(ctx context.Context, messageID int64) (bool, string) {
	if d.reviewerID == 0 {
		return false, "reviewer identity is not configured"
	}

	_, err := d.gateway.Call(ctx, "forward_friend_single_msg", map[string]interface{}{
		"user_id":    d.reviewerID,
		"message_id": strconv.FormatInt(messageID, 10),
	}, false, 0)
	if err != nil {
		d.logger.WithError(err).Error("Reviewer push failed")
		return false, "send failed, check the logs"
	}
	return true, fmt.Sprintf("pushed privately to reviewer (%d)", d.reviewerID)
}

// SendPrivateText sends a plain private message to a user. Used by the
// backpressure monitor for warning notifications.
func (d *Dispatcher) SendPrivateText(ctx context.Context, userID int64, text string) error {
	_, err := d.gateway.Call(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": text,
	}, false, 0)
	return err
}

func randomPaceDelay() time.Duration {
	spread := constants.DirectPaceMax - constants.DirectPaceMin
	return constants.DirectPaceMin + time.Duration(rand.Int63n(int64(spread)))
}
