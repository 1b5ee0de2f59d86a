package models

import "time"

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// GatewayConfig holds the chat-gateway socket settings.
type GatewayConfig struct {
	URL                 string `json:"url"`
	AccessToken         string `json:"accessToken,omitempty"`
	CallTimeoutSec      int    `json:"callTimeoutSec,omitempty"`
	ReconnectDelaySec   int    `json:"reconnectDelaySec,omitempty"`
	HandshakeTimeoutSec int    `json:"handshakeTimeoutSec,omitempty"`
}

// RelayConfig names the monitored origins, the redistribution targets and
// the reviewer identity.
type RelayConfig struct {
	SourceGroups []int64 `json:"sourceGroups"`
	TargetGroups []int64 `json:"targetGroups"`
	ReviewerID   int64   `json:"reviewerId,omitempty"`
	BannerTitle  string  `json:"bannerTitle,omitempty"`
}

// AutoPackConfig controls threshold-triggered batch dispatch.
type AutoPackConfig struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
}

// BackpressureConfig controls queue-depth warnings to the reviewer.
type BackpressureConfig struct {
	WarnIntervalMinutes int `json:"warnIntervalMinutes"`
	MediaWarnCount      int `json:"mediaWarnCount"`
	ForwardWarnCount    int `json:"forwardWarnCount"`
}

// QueueConfig bounds the pending queue and the dedup ledger.
type QueueConfig struct {
	AutoClearMinutes int `json:"autoClearMinutes"`
	DedupCapacity    int `json:"dedupCapacity"`
}

// DatabaseConfig locates the snapshot database.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig configures the ops HTTP API.
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig mirrors the OpenTelemetry setup knobs.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName,omitempty"`
	ServiceVersion string  `json:"serviceVersion,omitempty"`
	Environment    string  `json:"environment,omitempty"`
	OTLPEndpoint   string  `json:"otlpEndpoint,omitempty"`
	SampleRate     float64 `json:"sampleRate,omitempty"`
	UseStdout      bool    `json:"useStdout,omitempty"`
}

// Config is the full operator-editable configuration.
type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Relay        RelayConfig        `json:"relay"`
	AutoPack     AutoPackConfig     `json:"autoPack"`
	Backpressure BackpressureConfig `json:"backpressure"`
	Queue        QueueConfig        `json:"queue"`
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Tracing      TracingConfig      `json:"tracing"`
	LogLevel     string             `json:"logLevel,omitempty"`
}

// IsSourceGroup reports whether a group id is a monitored origin.
func (c *Config) IsSourceGroup(id int64) bool {
	for _, gid := range c.Relay.SourceGroups {
		if gid == id {
			return true
		}
	}
	return false
}

// AllGroups returns sources and targets as one deduplicated, order
// preserving list, used for display-metadata refreshes.
func (c *Config) AllGroups() []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, gid := range append(append([]int64{}, c.Relay.SourceGroups...), c.Relay.TargetGroups...) {
		if !seen[gid] {
			seen[gid] = true
			out = append(out, gid)
		}
	}
	return out
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Gateway.CallTimeoutSec) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Gateway.ReconnectDelaySec) * time.Second
}

func (c *Config) AutoClearDuration() time.Duration {
	return time.Duration(c.Queue.AutoClearMinutes) * time.Minute
}

func (c *Config) WarnInterval() time.Duration {
	return time.Duration(c.Backpressure.WarnIntervalMinutes) * time.Minute
}
