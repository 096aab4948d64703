package config

// RateLimitConfig holds the token-bucket settings for the unauthenticated
// exchange endpoint, which is the brute-forceable surface of the module.
type RateLimitConfig struct {
	Enabled bool `env:"AB_RATELIMIT_ENABLED" env-default:"true"`
	// Capacity is the bucket size per client IP.
	Capacity int `env:"AB_RATELIMIT_CAPACITY" env-default:"20"`
	// RefillRate is tokens per second.
	RefillRate float64 `env:"AB_RATELIMIT_REFILL_RATE" env-default:"0.5"`
}
