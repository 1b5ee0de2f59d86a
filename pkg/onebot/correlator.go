package onebot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"mediarelay/pkg/constants"
	"mediarelay/pkg/onebot/types"

	"github.com/google/uuid"
)

// Correlator matches outbound requests to their asynchronous replies using
// the echo token mirrored back by the gateway. Each outstanding request
// owns a one-shot result cell; the cell is removed when fulfilled or when
// the caller gives up, so a late reply is dropped instead of leaking into
// a future request.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan *types.Frame
}

func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[string]chan *types.Frame),
	}
}

// NewToken mints a correlation token. The timestamp keeps tokens readable
// in gateway logs; the random suffix makes collision across concurrently
// outstanding requests a non-issue.
func (c *Correlator) NewToken() string {
	return fmt.Sprintf("%s%d_%s", constants.EchoTokenPrefix, time.Now().UnixMicro(), uuid.NewString()[:8])
}

// IsReplyToken reports whether an inbound echo value belongs to this
// client's correlation space.
func IsReplyToken(echo string) bool {
	return strings.HasPrefix(echo, constants.EchoTokenPrefix)
}

// Register creates the result cell for a token. The channel is buffered so
// the read loop never blocks on a slow caller.
func (c *Correlator) Register(token string) <-chan *types.Frame {
	ch := make(chan *types.Frame, 1)
	c.mu.Lock()
	c.pending[token] = ch
	c.mu.Unlock()
	return ch
}

// Resolve fulfills and removes the cell for a token. It returns false when
// no request is outstanding for the token, which happens when the caller
// already timed out.
func (c *Correlator) Resolve(token string, frame *types.Frame) bool {
	c.mu.Lock()
	ch, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- frame
	return true
}

// Drop removes the cell for a token without fulfilling it.
func (c *Correlator) Drop(token string) {
	c.mu.Lock()
	delete(c.pending, token)
	c.mu.Unlock()
}

// Outstanding returns the number of requests awaiting replies.
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
