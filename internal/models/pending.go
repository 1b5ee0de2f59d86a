package models

import (
	"time"

	"mediarelay/pkg/onebot/types"
)

// ItemKind classifies a captured item by its normalized content.
type ItemKind string

const (
	ItemKindImage   ItemKind = "image"
	ItemKindVideo   ItemKind = "video"
	ItemKindMixed   ItemKind = "mixed"
	ItemKindForward ItemKind = "forward"
	// ItemKindUnknown exists only during classification; items of this
	// kind never reach the queue.
	ItemKindUnknown ItemKind = "unknown"
)

// IsBatchableMedia reports whether the kind participates in the media
// auto-pack branch. Mixed items are excluded: they need a human look
// before redistribution.
func (k ItemKind) IsBatchableMedia() bool {
	return k == ItemKindImage || k == ItemKindVideo
}

// Preview is a lightweight render descriptor for the front end. It never
// feeds back into dispatch.
type Preview struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	ID   string `json:"id,omitempty"`
}

// PendingItem is one captured content unit awaiting redistribution.
type PendingItem struct {
	ID              string          `json:"id"`
	Kind            ItemKind        `json:"kind"`
	Content         []types.Segment `json:"content"`
	Previews        []Preview       `json:"previews"`
	CreatedAt       time.Time       `json:"createdAt"`
	Selected        bool            `json:"selected"`
	SourceMessageID int64           `json:"sourceMessageId"`
}
