package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Segment is a single element of a OneBot message array. Data carries
// type-specific fields and is forwarded verbatim for segment types the
// relay does not normalize.
type Segment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Segment type names used on the wire.
const (
	SegmentText    = "text"
	SegmentImage   = "image"
	SegmentVideo   = "video"
	SegmentForward = "forward"
	SegmentNode    = "node"
)

// StringField returns the named data field coerced to a string. Providers
// are inconsistent about field types, so non-string values are formatted
// rather than dropped.
func (s Segment) StringField(key string) string {
	v, ok := s.Data[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// NewMediaSegment builds a normalized image/video segment carrying the URL
// in both the file and url fields, since gateways disagree about which one
// they resolve on send.
func NewMediaSegment(segType, url string) Segment {
	return Segment{
		Type: segType,
		Data: map[string]interface{}{
			"file": url,
			"url":  url,
		},
	}
}

// NewContentNode builds a synthetic forward node embedding arbitrary
// content under a fixed sender identity.
func NewContentNode(name, uin string, content interface{}) Segment {
	return Segment{
		Type: SegmentNode,
		Data: map[string]interface{}{
			"name":    name,
			"uin":     uin,
			"content": content,
		},
	}
}

// NewReferenceNode builds a forward node that references an already
// received message by id, leaving resolution to the gateway.
func NewReferenceNode(messageID int64) Segment {
	return Segment{
		Type: SegmentNode,
		Data: map[string]interface{}{
			"id": strconv.FormatInt(messageID, 10),
		},
	}
}

// Request is an outbound action frame. Echo is set only when a correlated
// reply is expected.
type Request struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

// Frame is a decoded inbound frame. The gateway multiplexes correlation
// replies, query-result pushes and message events over one socket, so this
// is a superset of all three shapes; consumers dispatch on the populated
// fields.
type Frame struct {
	Echo    string          `json:"echo,omitempty"`
	Status  string          `json:"status,omitempty"`
	RetCode int             `json:"retcode,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	PostType    string    `json:"post_type,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	GroupID     int64     `json:"group_id,omitempty"`
	MessageID   int64     `json:"message_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	Message     []Segment `json:"message,omitempty"`
}

// OK reports whether the frame is an acknowledged successful response.
func (f *Frame) OK() bool {
	return f != nil && f.Status == "ok"
}

// IsGroupMessage reports whether the frame is an unsolicited group message
// event.
func (f *Frame) IsGroupMessage() bool {
	return f.PostType == "message" && f.MessageType == "group"
}

// ProfileData holds the group/user profile fields the relay caches from
// query-result pushes.
type ProfileData struct {
	GroupID   int64  `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
}
