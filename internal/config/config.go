package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mediarelay/internal/constants"
	"mediarelay/internal/models"
	"mediarelay/internal/security"
	pkgconstants "mediarelay/pkg/constants"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing gateway websocket URL"}
	ErrBadGatewayURL     = models.ConfigError{Message: "gateway URL must use ws:// or wss://"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
	ErrNoSourceGroups    = models.ConfigError{Message: "at least one source group is required"}
)

// LoadConfig reads, validates and defaults the configuration file, then
// applies environment overrides.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Save writes the configuration back to disk. Called after operator edits
// that must survive a restart.
func Save(path string, config *models.Config) error {
	if err := security.ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

func validate(c *models.Config) error {
	if c.Gateway.URL == "" {
		return ErrMissingGatewayURL
	}
	if !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
		return ErrBadGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if len(c.Relay.SourceGroups) == 0 {
		return ErrNoSourceGroups
	}

	seen := make(map[int64]bool)
	for _, gid := range c.Relay.TargetGroups {
		if seen[gid] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate target group: %d", gid)}
		}
		seen[gid] = true
	}

	if c.Gateway.CallTimeoutSec <= 0 {
		c.Gateway.CallTimeoutSec = pkgconstants.DefaultCallTimeoutSec
	}
	if c.Gateway.ReconnectDelaySec <= 0 {
		c.Gateway.ReconnectDelaySec = pkgconstants.DefaultReconnectDelaySec
	}
	if c.Gateway.HandshakeTimeoutSec <= 0 {
		c.Gateway.HandshakeTimeoutSec = pkgconstants.DefaultHandshakeTimeoutSec
	}
	if c.Queue.DedupCapacity <= 0 {
		c.Queue.DedupCapacity = constants.DefaultDedupCapacity
	}
	if c.Queue.AutoClearMinutes < 0 {
		c.Queue.AutoClearMinutes = 0
	}
	if c.AutoPack.Threshold <= 0 {
		c.AutoPack.Threshold = constants.DefaultAutoPackThreshold
	}
	if c.Backpressure.WarnIntervalMinutes <= 0 {
		c.Backpressure.WarnIntervalMinutes = constants.DefaultWarnIntervalMinutes
	}
	if c.Relay.BannerTitle == "" {
		c.Relay.BannerTitle = constants.DefaultBannerTitle
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.LogLevel == "" {
		c.LogLevel = constants.DefaultLogLevel
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("MEDIARELAY_GATEWAY_URL"); url != "" {
		c.Gateway.URL = url
	}

	// SECURITY: the gateway access token should come from the environment
	// rather than the config file
	if token := os.Getenv("MEDIARELAY_GATEWAY_TOKEN"); token != "" {
		c.Gateway.AccessToken = token
	}

	if path := os.Getenv("MEDIARELAY_DB_PATH"); path != "" {
		c.Database.Path = path
	}
}
