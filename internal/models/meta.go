package models

import "time"

// MetaKind distinguishes display-metadata cache entries.
type MetaKind string

const (
	MetaKindGroup MetaKind = "group"
	MetaKindUser  MetaKind = "user"
)

// DisplayMeta is cached name/avatar data for a group or user. It is best
// effort decoration for the front end and never required for correctness.
type DisplayMeta struct {
	ID        int64     `json:"id"`
	Kind      MetaKind  `json:"kind"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl"`
	CachedAt  time.Time `json:"cachedAt"`
}
