package main

import (
	"context"
	"sync/atomic"
	"time"

	"mediarelay/pkg/onebot"
	"mediarelay/pkg/onebot/types"
)

// lateBoundGateway defers the gateway client binding so the relay (which
// needs a gateway) and the client (which needs the relay as its event
// handler) can be constructed in either order. Calls before bind report
// not-connected, the same answer the client itself gives before its first
// successful dial.
type lateBoundGateway struct {
	client atomic.Pointer[onebot.Client]
}

func (g *lateBoundGateway) bind(c *onebot.Client) {
	g.client.Store(c)
}

func (g *lateBoundGateway) Call(ctx context.Context, action string, params interface{}, expectReply bool, timeout time.Duration) (*types.Frame, error) {
	c := g.client.Load()
	if c == nil {
		return nil, onebot.ErrNotConnected
	}
	return c.Call(ctx, action, params, expectReply, timeout)
}
