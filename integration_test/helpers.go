package integration_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediarelay/internal/database"
	"mediarelay/internal/models"
	"mediarelay/internal/service"
	"mediarelay/pkg/onebot/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// recordingGateway stands in for the live socket and records every
// outbound action.
type recordingGateway struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	Action string
	Params map[string]interface{}
}

func (g *recordingGateway) Call(ctx context.Context, action string, params interface{}, expectReply bool, timeout time.Duration) (*types.Frame, error) {
	g.mu.Lock()
	g.calls = append(g.calls, recordedCall{Action: action, Params: params.(map[string]interface{})})
	g.mu.Unlock()
	return &types.Frame{Status: "ok"}, nil
}

func (g *recordingGateway) countFor(action string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, call := range g.calls {
		if call.Action == action {
			n++
		}
	}
	return n
}

// testEnvironment wires a relay against a real on-disk snapshot database.
type testEnvironment struct {
	cfg     *models.Config
	db      *database.Database
	gateway *recordingGateway
	relay   *service.Relay
}

func newTestEnvironment(t *testing.T, dbPath string, mutate func(*models.Config)) *testEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &models.Config{
		Gateway: models.GatewayConfig{URL: "ws://localhost:3001", CallTimeoutSec: 1},
		Relay: models.RelayConfig{
			SourceGroups: []int64{100},
			TargetGroups: []int64{201},
			ReviewerID:   9000,
			BannerTitle:  "Daily Digest",
		},
		Queue:    models.QueueConfig{DedupCapacity: 100},
		Database: models.DatabaseConfig{Path: dbPath},
	}
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.New(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gateway := &recordingGateway{}
	info := service.NewGroupInfoService(db, logger)
	relay := service.NewRelay(cfg, gateway, db, info, logger)
	require.NoError(t, relay.Restore(context.Background()))

	return &testEnvironment{cfg: cfg, db: db, gateway: gateway, relay: relay}
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "relay.db")
}

func imageEvent(url string) []types.Segment {
	return []types.Segment{
		{Type: types.SegmentImage, Data: map[string]interface{}{"url": url, "file": url}},
	}
}
