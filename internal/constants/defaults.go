package constants

import "time"

// Default queue and dedup configuration values
const (
	DefaultDedupCapacity     = 2000
	DefaultAutoClearMinutes  = 30
	DefaultAutoPackThreshold = 10
)

// Default backpressure configuration values
const (
	DefaultWarnIntervalMinutes = 30
)

// Dispatch pacing. Destinations are always walked sequentially with these
// delays between them; parallel fan-out would defeat the rate-limit
// avoidance the delays exist for.
const (
	MergePaceDelay       = 2 * time.Second
	PassthroughPaceDelay = 1 * time.Second
	DirectPaceMin        = 2 * time.Second
	DirectPaceMax        = 3500 * time.Millisecond
)

// Synthetic forward-node sender identity used for tier-1 merged batches.
const BannerSenderUin = "10000"

// Default service values
const (
	DefaultBannerTitle = "Relay Digest"
	DefaultServerPort  = 8082
	DefaultLogLevel    = "info"
)

// Default timeout values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultBackoffInitialMs      = 500
	DefaultBackoffMaxSec         = 5
)
