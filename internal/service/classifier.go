package service

import (
	"strings"
	"time"

	relayerrors "mediarelay/internal/errors"
	"mediarelay/internal/models"
	"mediarelay/pkg/onebot/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	errEmptyMessage = relayerrors.New(relayerrors.ErrCodeValidationRejected, "empty message")
	errTextPresent  = relayerrors.New(relayerrors.ErrCodeValidationRejected, "message carries text commentary")
	errNoContent    = relayerrors.New(relayerrors.ErrCodeValidationRejected, "no forwardable segments")
	errDuplicate    = relayerrors.New(relayerrors.ErrCodeValidationRejected, "duplicate content")
)

// Classifier turns a raw inbound message into a normalized pending item,
// or rejects it. Pure-text and text-annotated captures are presumed
// commentary rather than archival content and are filtered here, before
// anything reaches the queue.
type Classifier struct {
	ledger *DedupLedger
	logger *logrus.Logger
}

func NewClassifier(ledger *DedupLedger, logger *logrus.Logger) *Classifier {
	return &Classifier{ledger: ledger, logger: logger}
}

// Classify walks the raw segment list once, normalizing media segments,
// passing forward records through verbatim and accumulating the dedup
// fingerprint in encounter order.
func (c *Classifier) Classify(segments []types.Segment) (*models.PendingItem, error) {
	if len(segments) == 0 {
		return nil, errEmptyMessage
	}

	var (
		content      []types.Segment
		previews     []models.Preview
		fingerprints []string
		kind         = models.ItemKindUnknown
		hasText      bool
	)

	for _, seg := range segments {
		switch seg.Type {
		case types.SegmentText:
			if strings.TrimSpace(seg.StringField("text")) != "" {
				hasText = true
			}

		case types.SegmentImage:
			url := seg.StringField("url")
			if url == "" {
				continue
			}
			content = append(content, types.NewMediaSegment(types.SegmentImage, url))
			previews = append(previews, models.Preview{Type: "image", URL: url})
			fingerprints = append(fingerprints, stableMediaID(seg, url))
			switch kind {
			case models.ItemKindUnknown:
				kind = models.ItemKindImage
			case models.ItemKindImage:
			default:
				kind = models.ItemKindMixed
			}

		case types.SegmentVideo:
			url := seg.StringField("url")
			if url == "" {
				continue
			}
			content = append(content, types.NewMediaSegment(types.SegmentVideo, url))
			previews = append(previews, models.Preview{Type: "video", URL: url})
			fingerprints = append(fingerprints, stableMediaID(seg, url))
			switch kind {
			case models.ItemKindUnknown:
				kind = models.ItemKindVideo
			case models.ItemKindVideo:
			default:
				kind = models.ItemKindMixed
			}

		case types.SegmentForward, types.SegmentNode:
			resID := seg.StringField("id")
			if resID == "" {
				resID = seg.StringField("file")
			}
			// record segments travel untouched so the gateway can
			// re-resolve them
			content = append(content, seg)
			previews = append(previews, models.Preview{Type: "forward", ID: resID})
			fingerprints = append(fingerprints, resID)
			kind = models.ItemKindForward
		}
	}

	if hasText {
		return nil, errTextPresent
	}
	if len(content) == 0 {
		return nil, errNoContent
	}

	fingerprint := strings.Join(fingerprints, "")
	if !c.ledger.Insert(fingerprint) {
		c.logger.WithField("kind", kind).Info("Dropping duplicate content")
		return nil, errDuplicate
	}

	return &models.PendingItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		Previews:  previews,
		CreatedAt: time.Now(),
	}, nil
}

// stableMediaID prefers the provider-issued file id over the transient URL
// when accumulating the fingerprint.
func stableMediaID(seg types.Segment, url string) string {
	if file := seg.StringField("file"); file != "" {
		return file
	}
	return url
}
