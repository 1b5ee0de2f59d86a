package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mediarelay/internal/models"
	"mediarelay/pkg/onebot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleItems() []*models.PendingItem {
	return []*models.PendingItem{
		{
			ID:   "item-1",
			Kind: models.ItemKindImage,
			Content: []types.Segment{
				types.NewMediaSegment(types.SegmentImage, "https://example.com/a.jpg"),
			},
			Previews:        []models.Preview{{Type: "image", URL: "https://example.com/a.jpg"}},
			CreatedAt:       time.Now().UTC().Truncate(time.Second),
			SourceMessageID: 42,
		},
		{
			ID:              "item-2",
			Kind:            models.ItemKindForward,
			Content:         []types.Segment{{Type: types.SegmentForward, Data: map[string]interface{}{"id": "res-1"}}},
			SourceMessageID: 43,
		},
	}
}

func TestQueueSnapshot_RoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	items := sampleItems()
	fingerprints := []string{"fp-a", "fp-b", "fp-c"}

	require.NoError(t, db.SaveQueueSnapshot(ctx, items, fingerprints))

	gotItems, gotFPs, err := db.LoadQueueSnapshot(ctx)
	require.NoError(t, err)

	require.Len(t, gotItems, 2)
	assert.Equal(t, "item-1", gotItems[0].ID)
	assert.Equal(t, models.ItemKindImage, gotItems[0].Kind)
	assert.Equal(t, int64(42), gotItems[0].SourceMessageID)
	assert.Equal(t, "https://example.com/a.jpg", gotItems[0].Content[0].StringField("url"))
	assert.Equal(t, "item-2", gotItems[1].ID)

	assert.Equal(t, fingerprints, gotFPs)
}

func TestQueueSnapshot_ReplacesPreviousState(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveQueueSnapshot(ctx, sampleItems(), []string{"fp-a"}))
	require.NoError(t, db.SaveQueueSnapshot(ctx, nil, nil))

	items, fps, err := db.LoadQueueSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, fps)
}

func TestQueueSnapshot_EmptyDatabase(t *testing.T) {
	db := newTestDatabase(t)

	items, fps, err := db.LoadQueueSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, fps)
}

func TestDisplayMeta_RoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	meta := &models.DisplayMeta{
		ID:        100,
		Kind:      models.MetaKindGroup,
		Name:      "Archive Group",
		AvatarURL: "https://p.qlogo.cn/gh/100/100/100",
		CachedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, db.SaveDisplayMeta(ctx, meta))

	got, err := db.GetDisplayMeta(ctx, 100, models.MetaKindGroup)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Archive Group", got.Name)
	assert.Equal(t, models.MetaKindGroup, got.Kind)
}

func TestDisplayMeta_UpsertOverwrites(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDisplayMeta(ctx, &models.DisplayMeta{
		ID: 100, Kind: models.MetaKindGroup, Name: "Old Name",
	}))
	require.NoError(t, db.SaveDisplayMeta(ctx, &models.DisplayMeta{
		ID: 100, Kind: models.MetaKindGroup, Name: "New Name",
	}))

	got, err := db.GetDisplayMeta(ctx, 100, models.MetaKindGroup)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Name", got.Name)
}

func TestDisplayMeta_AbsentReturnsNil(t *testing.T) {
	db := newTestDatabase(t)

	got, err := db.GetDisplayMeta(context.Background(), 999, models.MetaKindUser)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDisplayMeta_List(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDisplayMeta(ctx, &models.DisplayMeta{ID: 100, Kind: models.MetaKindGroup, Name: "G"}))
	require.NoError(t, db.SaveDisplayMeta(ctx, &models.DisplayMeta{ID: 9000, Kind: models.MetaKindUser, Name: "U"}))

	entries, err := db.ListDisplayMeta(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNew_RejectsInvalidPath(t *testing.T) {
	_, err := New("../escape/relay.db")
	assert.Error(t, err)
}

func TestEncryptedSnapshot_RoundTrip(t *testing.T) {
	t.Setenv("MEDIARELAY_ENABLE_ENCRYPTION", "true")
	t.Setenv("MEDIARELAY_ENCRYPTION_SECRET", "a-very-long-test-secret")

	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveQueueSnapshot(ctx, sampleItems(), []string{"fp-a"}))

	items, fps, err := db.LoadQueueSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "item-1", items[0].ID)
	assert.Equal(t, []string{"fp-a"}, fps)
}
