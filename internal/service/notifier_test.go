package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_RefreshCoalesces(t *testing.T) {
	n := NewNotifier()

	assert.False(t, n.ConsumeRefresh())

	n.RequestRefresh()
	n.RequestRefresh()
	n.RequestRefresh()

	assert.True(t, n.ConsumeRefresh())
	// The edge is consumed, not level-triggered
	assert.False(t, n.ConsumeRefresh())
}

func TestNotifier_Drain(t *testing.T) {
	n := NewNotifier()

	n.Notify(SeverityInfo, "first")
	n.Notify(SeverityError, "second")

	out := n.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Message)
	assert.Equal(t, SeverityError, out[1].Severity)
	assert.False(t, out[0].At.IsZero())

	assert.Empty(t, n.Drain())
}
