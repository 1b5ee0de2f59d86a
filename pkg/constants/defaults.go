package constants

// Default timing values used by the gateway client package
const (
	DefaultCallTimeoutSec      = 15
	DefaultReconnectDelaySec   = 3
	DefaultHandshakeTimeoutSec = 10
)

// Socket limits
const (
	MaxFrameBytes = 4 * 1024 * 1024
)

// EchoTokenPrefix marks correlation tokens minted by this client. Inbound
// frames whose echo carries this prefix are replies, never events.
const EchoTokenPrefix = "req_"
