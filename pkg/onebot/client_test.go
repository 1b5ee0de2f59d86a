package onebot

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"mediarelay/pkg/onebot/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordedEvent struct {
	groupID   int64
	messageID int64
	segments  []types.Segment
}

type recordingHandler struct {
	mu       sync.Mutex
	events   []recordedEvent
	profiles []types.ProfileData
}

func (h *recordingHandler) HandleGroupMessage(ctx context.Context, groupID, messageID int64, segments []types.Segment) {
	h.mu.Lock()
	h.events = append(h.events, recordedEvent{groupID, messageID, segments})
	h.mu.Unlock()
}

func (h *recordingHandler) HandleProfileData(ctx context.Context, profile types.ProfileData) {
	h.mu.Lock()
	h.profiles = append(h.profiles, profile)
	h.mu.Unlock()
}

type recordingObserver struct {
	mu         sync.Mutex
	connects   int
	losses     int
	lastOutage time.Duration
}

func (o *recordingObserver) SessionConnected(ctx context.Context, outage time.Duration) {
	o.mu.Lock()
	o.connects++
	o.lastOutage = outage
	o.mu.Unlock()
}

func (o *recordingObserver) SessionLost(ctx context.Context) {
	o.mu.Lock()
	o.losses++
	o.mu.Unlock()
}

func newTestClient(handler *recordingHandler, observer *recordingObserver) *Client {
	return NewClient(Config{URL: "ws://localhost:9"}, handler, observer, testLogger())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{URL: "ws://localhost:3001"}
	cfg.applyDefaults()

	assert.Equal(t, 15*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
}

func TestClient_CallWhileDisconnected(t *testing.T) {
	c := newTestClient(&recordingHandler{}, &recordingObserver{})

	_, err := c.Call(context.Background(), "send_group_msg", map[string]interface{}{}, true, time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_InitialState(t *testing.T) {
	c := newTestClient(&recordingHandler{}, &recordingObserver{})

	state, since := c.State()
	assert.Equal(t, StateDisconnected, state)
	assert.True(t, since.IsZero())
}

func TestDispatch_GroupMessageEvent(t *testing.T) {
	handler := &recordingHandler{}
	c := newTestClient(handler, &recordingObserver{})

	c.dispatch(context.Background(), &types.Frame{
		PostType:    "message",
		MessageType: "group",
		GroupID:     100,
		MessageID:   42,
		Message:     []types.Segment{{Type: types.SegmentImage, Data: map[string]interface{}{"url": "u"}}},
	})

	require.Len(t, handler.events, 1)
	assert.Equal(t, int64(100), handler.events[0].groupID)
	assert.Equal(t, int64(42), handler.events[0].messageID)
}

func TestDispatch_ReplyConsumedByCorrelator(t *testing.T) {
	handler := &recordingHandler{}
	c := newTestClient(handler, &recordingObserver{})

	token := c.correlator.NewToken()
	result := c.correlator.Register(token)

	c.dispatch(context.Background(), &types.Frame{Echo: token, Status: "ok"})

	select {
	case frame := <-result:
		assert.True(t, frame.OK())
	default:
		t.Fatal("reply was not delivered to the correlator")
	}
	// Correlation replies never surface as events
	assert.Empty(t, handler.events)
	assert.Empty(t, handler.profiles)
}

func TestDispatch_ForeignEchoIgnored(t *testing.T) {
	handler := &recordingHandler{}
	c := newTestClient(handler, &recordingObserver{})

	c.dispatch(context.Background(), &types.Frame{Echo: "someone-elses-echo", Status: "ok"})
	assert.Empty(t, handler.events)
}

func TestDispatch_ProfileDataPush(t *testing.T) {
	handler := &recordingHandler{}
	c := newTestClient(handler, &recordingObserver{})

	data, err := json.Marshal(map[string]interface{}{"group_id": 100, "group_name": "Archive Group"})
	require.NoError(t, err)

	c.dispatch(context.Background(), &types.Frame{Status: "ok", Data: data})

	require.Len(t, handler.profiles, 1)
	assert.Equal(t, "Archive Group", handler.profiles[0].GroupName)
}

func TestEnterError_NotifiesOncePerEpisode(t *testing.T) {
	observer := &recordingObserver{}
	c := newTestClient(&recordingHandler{}, observer)

	c.enterError(context.Background())
	c.enterError(context.Background())
	c.enterError(context.Background())

	assert.Equal(t, 1, observer.losses)

	_, since := c.State()
	assert.False(t, since.IsZero())
}

func TestFrame_Helpers(t *testing.T) {
	ok := &types.Frame{Status: "ok"}
	assert.True(t, ok.OK())
	assert.False(t, (&types.Frame{Status: "failed"}).OK())

	event := &types.Frame{PostType: "message", MessageType: "group"}
	assert.True(t, event.IsGroupMessage())
	assert.False(t, (&types.Frame{PostType: "message", MessageType: "private"}).IsGroupMessage())
}
