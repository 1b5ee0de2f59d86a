package integration_test

import (
	"context"
	"testing"
	"time"

	"mediarelay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionPersistsAcrossRestart(t *testing.T) {
	dbPath := tempDBPath(t)
	ctx := context.Background()

	env := newTestEnvironment(t, dbPath, nil)
	env.relay.HandleGroupMessage(ctx, 100, 41, imageEvent("https://example.com/a.jpg"))
	env.relay.HandleGroupMessage(ctx, 100, 42, imageEvent("https://example.com/b.jpg"))
	require.Equal(t, 2, env.relay.Queue().Len())

	// A fresh relay over the same database sees the same queue and still
	// suppresses previously captured content
	restarted := newTestEnvironment(t, dbPath, nil)
	assert.Equal(t, 2, restarted.relay.Queue().Len())

	restarted.relay.HandleGroupMessage(ctx, 100, 43, imageEvent("https://example.com/a.jpg"))
	assert.Equal(t, 2, restarted.relay.Queue().Len())
}

func TestAutoPackDrainsOnThreshold(t *testing.T) {
	env := newTestEnvironment(t, tempDBPath(t), func(cfg *models.Config) {
		cfg.AutoPack = models.AutoPackConfig{Enabled: true, Threshold: 2}
	})
	ctx := context.Background()

	env.relay.HandleGroupMessage(ctx, 100, 41, imageEvent("https://example.com/a.jpg"))
	env.relay.HandleGroupMessage(ctx, 100, 42, imageEvent("https://example.com/b.jpg"))

	// The scheduler runs in a spawned task and paces between destinations
	require.Eventually(t, func() bool {
		return env.relay.Queue().Len() == 0
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, 1, env.gateway.countFor("send_group_forward_msg"))
}

func TestManualDispatchRoundTrip(t *testing.T) {
	env := newTestEnvironment(t, tempDBPath(t), nil)
	ctx := context.Background()

	env.relay.HandleGroupMessage(ctx, 100, 41, imageEvent("https://example.com/a.jpg"))
	require.Equal(t, 1, env.relay.Queue().Len())

	id := env.relay.Queue().Snapshot()[0].ID
	require.NoError(t, env.relay.ManualDirect(ctx, []string{id}))

	assert.Equal(t, 0, env.relay.Queue().Len())
	assert.Equal(t, 1, env.gateway.countFor("send_group_msg"))

	// The dequeue is persisted
	restarted := newTestEnvironment(t, env.cfg.Database.Path, nil)
	assert.Equal(t, 0, restarted.relay.Queue().Len())
}

func TestQueueExpiryAfterLongOutage(t *testing.T) {
	env := newTestEnvironment(t, tempDBPath(t), func(cfg *models.Config) {
		cfg.Queue.AutoClearMinutes = 30
	})
	ctx := context.Background()

	env.relay.HandleGroupMessage(ctx, 100, 41, imageEvent("https://example.com/a.jpg"))
	require.Equal(t, 1, env.relay.Queue().Len())

	env.relay.SessionConnected(ctx, time.Hour)
	assert.Equal(t, 0, env.relay.Queue().Len())
	// Metadata refresh queries went out for both groups and the reviewer
	assert.Equal(t, 2, env.gateway.countFor("get_group_info"))
	assert.Equal(t, 1, env.gateway.countFor("get_stranger_info"))
}
