package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediarelay/internal/models"
	"mediarelay/pkg/onebot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for the snapshot database.
type fakeStore struct {
	mu           sync.Mutex
	items        []*models.PendingItem
	fingerprints []string
	saves        int
	saveErr      error
	loadErr      error
}

func (s *fakeStore) SaveQueueSnapshot(ctx context.Context, items []*models.PendingItem, fingerprints []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items = append([]*models.PendingItem{}, items...)
	s.fingerprints = append([]string{}, fingerprints...)
	s.saves++
	return nil
}

func (s *fakeStore) LoadQueueSnapshot(ctx context.Context) ([]*models.PendingItem, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items, s.fingerprints, s.loadErr
}

func (s *fakeStore) SaveDisplayMeta(ctx context.Context, meta *models.DisplayMeta) error { return nil }
func (s *fakeStore) ListDisplayMeta(ctx context.Context) ([]*models.DisplayMeta, error) {
	return nil, nil
}

func (s *fakeStore) savedItems() []*models.PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

func newTestRelay(cfg *models.Config, gateway GatewayCaller, store *fakeStore) *Relay {
	logger := testLogger()
	return NewRelay(cfg, gateway, store, NewGroupInfoService(store, logger), logger)
}

func imageMessage(url string) []types.Segment {
	return []types.Segment{
		seg(types.SegmentImage, map[string]interface{}{"url": url, "file": url}),
	}
}

func TestRelay_IgnoresNonSourceGroups(t *testing.T) {
	store := &fakeStore{}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	relay.HandleGroupMessage(context.Background(), 999, 1, imageMessage("https://example.com/a.jpg"))
	assert.Equal(t, 0, relay.Queue().Len())
}

func TestRelay_CapturesAndPersists(t *testing.T) {
	store := &fakeStore{}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	relay.HandleGroupMessage(context.Background(), 100, 42, imageMessage("https://example.com/a.jpg"))

	require.Equal(t, 1, relay.Queue().Len())
	item := relay.Queue().Snapshot()[0]
	assert.Equal(t, int64(42), item.SourceMessageID)
	require.Len(t, store.savedItems(), 1)
	assert.True(t, relay.Notifier().ConsumeRefresh())
}

func TestRelay_DropsDuplicates(t *testing.T) {
	store := &fakeStore{}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	relay.HandleGroupMessage(context.Background(), 100, 1, imageMessage("https://example.com/a.jpg"))
	relay.HandleGroupMessage(context.Background(), 100, 2, imageMessage("https://example.com/a.jpg"))

	assert.Equal(t, 1, relay.Queue().Len())
}

func TestRelay_RejectsTextCommentary(t *testing.T) {
	store := &fakeStore{}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	relay.HandleGroupMessage(context.Background(), 100, 1, []types.Segment{
		seg(types.SegmentText, map[string]interface{}{"text": "check this out"}),
		seg(types.SegmentImage, map[string]interface{}{"url": "https://example.com/a.jpg"}),
	})
	assert.Equal(t, 0, relay.Queue().Len())
}

func TestRelay_RestoreRoundTrip(t *testing.T) {
	store := &fakeStore{
		items:        []*models.PendingItem{mediaItem("a", 1)},
		fingerprints: []string{"https://example.com/a.jpg"},
	}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	require.NoError(t, relay.Restore(context.Background()))
	assert.Equal(t, 1, relay.Queue().Len())

	// The restored ledger still suppresses duplicates
	relay.HandleGroupMessage(context.Background(), 100, 2, imageMessage("https://example.com/a.jpg"))
	assert.Equal(t, 1, relay.Queue().Len())
}

func TestRelay_SessionConnectedExpiresStaleQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.AutoClearMinutes = 30
	store := &fakeStore{}
	gateway := &fakeGateway{}
	relay := newTestRelay(cfg, gateway, store)

	relay.Queue().Append(mediaItem("a", 1))
	relay.SessionConnected(context.Background(), 45*time.Minute)

	assert.Equal(t, 0, relay.Queue().Len())

	notifications := relay.Notifier().Drain()
	require.Len(t, notifications, 1)
	assert.Equal(t, SeverityWarning, notifications[0].Severity)
}

func TestRelay_SessionConnectedKeepsFreshQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.AutoClearMinutes = 30
	store := &fakeStore{}
	relay := newTestRelay(cfg, &fakeGateway{}, store)

	relay.Queue().Append(mediaItem("a", 1))
	relay.SessionConnected(context.Background(), 5*time.Minute)

	assert.Equal(t, 1, relay.Queue().Len())
}

func TestRelay_SessionConnectedRefreshesMetadata(t *testing.T) {
	gateway := &fakeGateway{}
	relay := newTestRelay(testConfig(), gateway, &fakeStore{})

	relay.SessionConnected(context.Background(), 0)

	// One query per distinct group plus one for the reviewer
	assert.Len(t, gateway.callsFor("get_group_info"), 3)
	assert.Len(t, gateway.callsFor("get_stranger_info"), 1)
}

func TestRelay_SessionLostNotifies(t *testing.T) {
	relay := newTestRelay(testConfig(), &fakeGateway{}, &fakeStore{})

	relay.SessionLost(context.Background())

	notifications := relay.Notifier().Drain()
	require.Len(t, notifications, 1)
	assert.Equal(t, SeverityError, notifications[0].Severity)
}

func TestRelay_ManualMergeRemovesOnSuccess(t *testing.T) {
	store := &fakeStore{}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	item := mediaItem("a", 1)
	relay.Queue().Append(item)

	failed, err := relay.ManualMerge(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 0, relay.Queue().Len())
}

func TestRelay_ManualMergeKeepsItemsOnFailure(t *testing.T) {
	gateway := &fakeGateway{
		respond: func(call gatewayCall) (*types.Frame, error) {
			return nil, assert.AnError
		},
	}
	relay := newTestRelay(testConfig(), gateway, &fakeStore{})

	relay.Queue().Append(mediaItem("a", 1))

	failed, err := relay.ManualMerge(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []int64{201, 202}, failed)
	assert.Equal(t, 1, relay.Queue().Len())
}

func TestRelay_ManualMergeUnknownIDs(t *testing.T) {
	relay := newTestRelay(testConfig(), &fakeGateway{}, &fakeStore{})

	_, err := relay.ManualMerge(context.Background(), []string{"missing"})
	assert.Error(t, err)
}

func TestRelay_ManualDirect(t *testing.T) {
	gateway := &fakeGateway{}
	relay := newTestRelay(testConfig(), gateway, &fakeStore{})

	relay.Queue().Append(mediaItem("a", 1))

	require.NoError(t, relay.ManualDirect(context.Background(), []string{"a"}))
	assert.Equal(t, 0, relay.Queue().Len())
	assert.Len(t, gateway.callsFor("send_group_msg"), 2)
}

func TestRelay_ManualPassthrough(t *testing.T) {
	gateway := &fakeGateway{}
	relay := newTestRelay(testConfig(), gateway, &fakeStore{})

	relay.Queue().Append(forwardItem("a", 77))

	require.NoError(t, relay.ManualPassthrough(context.Background(), []string{"a"}))
	assert.Equal(t, 0, relay.Queue().Len())

	calls := gateway.callsFor("forward_group_single_msg")
	require.Len(t, calls, 2)
	assert.Equal(t, "77", calls[0].Params["message_id"])
}

func TestRelay_PushToReviewerMissingItem(t *testing.T) {
	relay := newTestRelay(testConfig(), &fakeGateway{}, &fakeStore{})

	ok, message := relay.PushToReviewer(context.Background(), "missing")
	assert.False(t, ok)
	assert.NotEmpty(t, message)
}

func TestRelay_SaveSnapshotToleratesStoreFailure(t *testing.T) {
	store := &fakeStore{saveErr: assert.AnError}
	relay := newTestRelay(testConfig(), &fakeGateway{}, store)

	relay.Queue().Append(mediaItem("a", 1))
	relay.SaveSnapshot(context.Background())

	// In-memory state stays authoritative
	assert.Equal(t, 1, relay.Queue().Len())
}

func TestRelay_Depths(t *testing.T) {
	relay := newTestRelay(testConfig(), &fakeGateway{}, &fakeStore{})

	relay.Queue().Append(mediaItem("a", 1))
	relay.Queue().Append(newTestItem("m", models.ItemKindMixed))
	relay.Queue().Append(forwardItem("f", 2))

	media, forward := relay.Depths()
	assert.Equal(t, 1, media)
	assert.Equal(t, 1, forward)
}
