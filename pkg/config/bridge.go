package config

import (
	"fmt"
	"time"
)

// BridgeConfig holds session bridge and guard timing settings. Durations are
// Go duration strings.
type BridgeConfig struct {
	// Persistence is one of "memory" or "file".
	Persistence string `env:"AB_BRIDGE_PERSISTENCE" env-default:"memory"`
	DataDir     string `env:"AB_BRIDGE_DATA_DIR" env-default:"./data"`
	// BridgeTTL bounds how long a mobile bridging context may wait for the
	// provider redirect to come back.
	BridgeTTL string `env:"AB_BRIDGE_TTL" env-default:"10m"`
	// ClearDelay is how long the just-passed flag stays visible after a
	// guard admits on it, covering parallel guard evaluations.
	ClearDelay string `env:"AB_FLAG_CLEAR_DELAY" env-default:"500ms"`
	// ScanSessionTTL bounds how long a rendered QR code stays scannable.
	ScanSessionTTL string `env:"AB_SCAN_SESSION_TTL" env-default:"5m"`
}

// ParseBridgeTTL parses the bridging context lifetime.
func (b BridgeConfig) ParseBridgeTTL() (time.Duration, error) {
	d, err := time.ParseDuration(b.BridgeTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid bridge ttl %q: %w", b.BridgeTTL, err)
	}
	return d, nil
}

// ParseClearDelay parses the just-passed flag clear delay.
func (b BridgeConfig) ParseClearDelay() (time.Duration, error) {
	d, err := time.ParseDuration(b.ClearDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid flag clear delay %q: %w", b.ClearDelay, err)
	}
	return d, nil
}

// ParseScanSessionTTL parses the scan session lifetime.
func (b BridgeConfig) ParseScanSessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(b.ScanSessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid scan session ttl %q: %w", b.ScanSessionTTL, err)
	}
	return d, nil
}
