package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediarelay/internal/models"

	"github.com/sirupsen/logrus"
)

// MetaStore is the persistence surface the display-metadata cache needs.
type MetaStore interface {
	SaveDisplayMeta(ctx context.Context, meta *models.DisplayMeta) error
	ListDisplayMeta(ctx context.Context) ([]*models.DisplayMeta, error)
}

// GroupInfoService caches display names and avatars for groups and users.
// Entirely best-effort: it is fed by gateway query-result pushes and only
// decorates the front end, never correctness.
type GroupInfoService struct {
	mu     sync.RWMutex
	groups map[int64]*models.DisplayMeta
	users  map[int64]*models.DisplayMeta
	db     MetaStore
	logger *logrus.Logger
}

func NewGroupInfoService(db MetaStore, logger *logrus.Logger) *GroupInfoService {
	return &GroupInfoService{
		groups: make(map[int64]*models.DisplayMeta),
		users:  make(map[int64]*models.DisplayMeta),
		db:     db,
		logger: logger,
	}
}

// GroupAvatarURL builds the provider's group avatar endpoint.
func GroupAvatarURL(id int64) string {
	return fmt.Sprintf("https://p.qlogo.cn/gh/%d/%d/100", id, id)
}

// UserAvatarURL builds the provider's user avatar endpoint.
func UserAvatarURL(id int64) string {
	return fmt.Sprintf("https://q1.qlogo.cn/g?b=qq&nk=%d&s=100", id)
}

// Warm loads previously cached entries from the store.
func (s *GroupInfoService) Warm(ctx context.Context) {
	entries, err := s.db.ListDisplayMeta(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Display metadata warm-up failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, meta := range entries {
		switch meta.Kind {
		case models.MetaKindGroup:
			s.groups[meta.ID] = meta
		case models.MetaKindUser:
			s.users[meta.ID] = meta
		}
	}
}

// UpdateGroup caches a group's display name.
func (s *GroupInfoService) UpdateGroup(ctx context.Context, id int64, name string) {
	if name == "" {
		name = fmt.Sprintf("%d", id)
	}
	meta := &models.DisplayMeta{
		ID:        id,
		Kind:      models.MetaKindGroup,
		Name:      name,
		AvatarURL: GroupAvatarURL(id),
		CachedAt:  time.Now(),
	}
	s.mu.Lock()
	s.groups[id] = meta
	s.mu.Unlock()
	s.persist(ctx, meta)
}

// UpdateUser caches a user's display name.
func (s *GroupInfoService) UpdateUser(ctx context.Context, id int64, nickname string) {
	if nickname == "" {
		nickname = fmt.Sprintf("%d", id)
	}
	meta := &models.DisplayMeta{
		ID:        id,
		Kind:      models.MetaKindUser,
		Name:      nickname,
		AvatarURL: UserAvatarURL(id),
		CachedAt:  time.Now(),
	}
	s.mu.Lock()
	s.users[id] = meta
	s.mu.Unlock()
	s.persist(ctx, meta)
}

// GroupMeta returns the cached entry for a group, or nil.
func (s *GroupInfoService) GroupMeta(id int64) *models.DisplayMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[id]
}

// UserMeta returns the cached entry for a user, or nil.
func (s *GroupInfoService) UserMeta(id int64) *models.DisplayMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id]
}

func (s *GroupInfoService) persist(ctx context.Context, meta *models.DisplayMeta) {
	if err := s.db.SaveDisplayMeta(ctx, meta); err != nil {
		s.logger.WithError(err).Debug("Display metadata persist failed")
	}
}
