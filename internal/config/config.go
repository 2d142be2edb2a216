package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the daemon reads from the environment. Every key is
// prefixed VOUCHD_, so HTTPAddr comes from VOUCHD_HTTP_ADDR and so on.
type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReputationCacheTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int
	RateLimitFailClosed    bool

	PolicyBundlePath string
	PolicyBundleID   string

	CredentialExpiryDays int
}

func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("VOUCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("reputation_cache_ttl_seconds", 30)
	v.SetDefault("rate_limit_requests", 0)
	v.SetDefault("rate_limit_window_seconds", 60)
	v.SetDefault("rate_limit_max_keys", 10000)
	v.SetDefault("policy_bundle_id", "reference_v0")
	v.SetDefault("credential_expiry_days", 0)

	return Config{
		HTTPAddr:                  v.GetString("http_addr"),
		PostgresDSN:               v.GetString("postgres_dsn"),
		LogLevel:                  v.GetString("log_level"),
		RedisAddr:                 v.GetString("redis_addr"),
		RedisPassword:             v.GetString("redis_password"),
		RedisDB:                   v.GetInt("redis_db"),
		ReputationCacheTTLSeconds: v.GetInt("reputation_cache_ttl_seconds"),
		RateLimitRequests:         v.GetInt("rate_limit_requests"),
		RateLimitWindowSeconds:    v.GetInt("rate_limit_window_seconds"),
		RateLimitMaxKeys:          v.GetInt("rate_limit_max_keys"),
		RateLimitFailClosed:       v.GetBool("rate_limit_fail_closed"),
		PolicyBundlePath:          v.GetString("policy_bundle_path"),
		PolicyBundleID:            v.GetString("policy_bundle_id"),
		CredentialExpiryDays:      v.GetInt("credential_expiry_days"),
	}
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) ReputationCacheTTL() time.Duration {
	return time.Duration(c.ReputationCacheTTLSeconds) * time.Second
}

func (c Config) CredentialExpiry() time.Duration {
	return time.Duration(c.CredentialExpiryDays) * 24 * time.Hour
}
