// Package config centralizes environment configuration for the auth bridge.
// Every service reads the same structs so variable names and defaults live in
// one place.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full configuration of the authbridge server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Email     EmailConfig
	Provider  ProviderConfig
	Bridge    BridgeConfig
	Profile   ProfileConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"AB_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"AB_PORT" env-default:"4000"`
	// AppOrigin is the externally visible origin of the application shell,
	// used when building QR scan URLs and magic-link redirects.
	AppOrigin string `env:"AB_APP_ORIGIN" env-default:"http://localhost:4000"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig selects and configures the identity provider backend.
type ProviderConfig struct {
	// Mode is "local" for the in-process provider or "remote" for an
	// external HTTP identity provider.
	Mode    string `env:"AB_IDP_MODE" env-default:"local"`
	BaseURL string `env:"AB_IDP_BASE_URL" env-default:""`
	APIKey  string `env:"AB_IDP_API_KEY" env-default:""`

	// SeedEmail/SeedPassword create a development account on startup when
	// the local provider is selected. Ignored in remote mode.
	SeedEmail    string `env:"AB_SEED_EMAIL" env-default:""`
	SeedPassword string `env:"AB_SEED_PASSWORD" env-default:""`
	SeedAdmin    bool   `env:"AB_SEED_ADMIN" env-default:"false"`
}

// ProfileConfig selects the profile repository backend.
type ProfileConfig struct {
	// Persistence is one of "postgres", "file" or "memory".
	Persistence string `env:"AB_PROFILE_PERSISTENCE" env-default:"memory"`
	DataDir     string `env:"AB_PROFILE_DATA_DIR" env-default:"./data"`
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment config: %w", err)
	}
	return &cfg, nil
}
