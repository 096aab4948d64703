package config

import (
	"fmt"
)

// DatabaseConfig holds PostgreSQL settings for the profile store.
type DatabaseConfig struct {
	Host     string `env:"AB_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AB_PG_PORT" env-default:"5432"`
	Database string `env:"AB_PG_DATABASE" env-default:"authbridge_db"`
	User     string `env:"AB_PG_USER" env-default:"authbridge"`
	Password string `env:"AB_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"AB_PG_SCHEMA" env-default:"public"`
	SSLMode  string `env:"AB_PG_SSLMODE" env-default:"disable"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL.
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode, d.Schema)
}
