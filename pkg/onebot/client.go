package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mediarelay/pkg/constants"
	"mediarelay/pkg/onebot/types"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// State is the session connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

var (
	// ErrNotConnected is returned by Call while the session is down.
	ErrNotConnected = errors.New("gateway not connected")
	// ErrRequestTimeout is returned when no correlated reply arrived
	// within the deadline.
	ErrRequestTimeout = errors.New("gateway request timed out")
)

// Config holds the gateway connection settings.
type Config struct {
	URL              string
	AccessToken      string
	CallTimeout      time.Duration
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = constants.DefaultCallTimeoutSec * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = constants.DefaultReconnectDelaySec * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = constants.DefaultHandshakeTimeoutSec * time.Second
	}
}

// EventHandler receives decoded gateway pushes from the read loop.
// Implementations must not block; slow work belongs in spawned tasks.
type EventHandler interface {
	HandleGroupMessage(ctx context.Context, groupID, messageID int64, segments []types.Segment)
	HandleProfileData(ctx context.Context, profile types.ProfileData)
}

// SessionObserver is notified of connection lifecycle transitions.
type SessionObserver interface {
	// SessionConnected fires on every successful connect. outage is the
	// time spent disconnected before this connect, zero on the first one.
	SessionConnected(ctx context.Context, outage time.Duration)
	// SessionLost fires once per disconnect episode, on the first failure.
	SessionLost(ctx context.Context)
}

// Client owns the socket lifecycle: connect, authenticated handshake,
// read loop, reconnect with delay. It is the sole path to the gateway for
// every other component.
type Client struct {
	cfg        Config
	logger     *logrus.Logger
	handler    EventHandler
	observer   SessionObserver
	correlator *Correlator

	mu                sync.RWMutex
	conn              *websocket.Conn
	state             State
	disconnectedSince time.Time

	writeMu sync.Mutex
}

func NewClient(cfg Config, handler EventHandler, observer SessionObserver, logger *logrus.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:        cfg,
		logger:     logger,
		handler:    handler,
		observer:   observer,
		correlator: NewCorrelator(),
		state:      StateDisconnected,
	}
}

// State returns the current session state and, when disconnected, the time
// the current disconnect episode began.
func (c *Client) State() (State, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.disconnectedSince
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives the session until ctx is cancelled. It never returns earlier:
// every connect or read failure is contained here and followed by a
// reconnect attempt after the configured delay.
func (c *Client) Run(ctx context.Context) {
	c.logger.WithField("url", c.cfg.URL).Info("Starting gateway session")

	for ctx.Err() == nil {
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.WithError(err).Error("Gateway connect failed")
			c.enterError(ctx)
		} else {
			c.mu.Lock()
			c.conn = conn
			c.state = StateConnected
			outage := time.Duration(0)
			if !c.disconnectedSince.IsZero() {
				outage = time.Since(c.disconnectedSince)
				c.disconnectedSince = time.Time{}
			}
			c.mu.Unlock()

			if outage > 0 {
				c.logger.WithField("outage", outage).Info("Gateway reconnected")
			} else {
				c.logger.Info("Gateway connected")
			}
			if c.observer != nil {
				c.observer.SessionConnected(ctx, outage)
			}

			err = c.readLoop(ctx, conn)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "")

			if ctx.Err() == nil {
				c.logger.WithError(err).Warn("Gateway connection lost")
				c.enterError(ctx)
			}
		}

		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}

	c.setState(StateDisconnected)
	c.logger.Info("Gateway session stopped")
}

// enterError stamps the start of a disconnect episode and notifies the
// observer exactly once per episode.
func (c *Client) enterError(ctx context.Context) {
	c.setState(StateError)

	c.mu.Lock()
	firstFailure := c.disconnectedSince.IsZero()
	if firstFailure {
		c.disconnectedSince = time.Now()
	}
	c.mu.Unlock()

	if firstFailure && c.observer != nil {
		c.observer.SessionLost(ctx)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{
		HTTPHeader: http.Header{},
	}
	if c.cfg.AccessToken != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(constants.MaxFrameBytes)
	return conn, nil
}

// readLoop consumes inbound frames one at a time until the socket closes
// or a frame fails to decode.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("socket read failed: %w", err)
		}

		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("frame decode failed: %w", err)
		}

		c.dispatch(ctx, &frame)
	}
}

// dispatch routes a decoded frame by shape. Correlation replies are
// consumed here and never treated as events.
func (c *Client) dispatch(ctx context.Context, frame *types.Frame) {
	if frame.Echo != "" {
		if IsReplyToken(frame.Echo) {
			if !c.correlator.Resolve(frame.Echo, frame) {
				c.logger.WithField("echo", frame.Echo).Debug("Dropping reply for expired request")
			}
		}
		return
	}

	if frame.OK() && len(frame.Data) > 0 {
		var profile types.ProfileData
		if err := json.Unmarshal(frame.Data, &profile); err == nil {
			if profile.GroupName != "" || profile.Nickname != "" {
				c.handler.HandleProfileData(ctx, profile)
			}
		}
	}

	if frame.IsGroupMessage() {
		c.handler.HandleGroupMessage(ctx, frame.GroupID, frame.MessageID, frame.Message)
	}
}

// Call sends an action frame. With expectReply false it is fire-and-forget:
// transport errors are swallowed after logging, matching the gateway's
// tolerance for lossy notification sends. With expectReply true the caller
// suspends until the correlated reply arrives or timeout elapses; a zero
// timeout uses the configured default.
func (c *Client) Call(ctx context.Context, action string, params interface{}, expectReply bool, timeout time.Duration) (*types.Frame, error) {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return nil, ErrNotConnected
	}

	if !expectReply {
		req := types.Request{Action: action, Params: params}
		if err := c.write(ctx, conn, req); err != nil {
			c.logger.WithError(err).WithField("action", action).Debug("Fire-and-forget send failed")
		}
		return nil, nil
	}

	token := c.correlator.NewToken()
	result := c.correlator.Register(token)

	req := types.Request{Action: action, Params: params, Echo: token}
	if err := c.write(ctx, conn, req); err != nil {
		c.correlator.Drop(token)
		return nil, fmt.Errorf("request send failed: %w", err)
	}

	if timeout <= 0 {
		timeout = c.cfg.CallTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-result:
		return frame, nil
	case <-timer.C:
		c.correlator.Drop(token)
		c.logger.WithFields(logrus.Fields{
			"action": action,
			"echo":   token,
		}).Warn("Gateway request timed out")
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		c.correlator.Drop(token)
		return nil, ctx.Err()
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, req types.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("request encode failed: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, payload)
}
