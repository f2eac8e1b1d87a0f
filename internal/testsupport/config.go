package testsupport

import (
	"path/filepath"
	"testing"

	"marquee/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.TMDB.APIKey = "test"
	cfg.Radarr.APIKey = "test"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Webhook.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithTwilio fills in working Twilio credentials on the test config.
func WithTwilio(accountSID, authToken, fromNumber string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Twilio.AccountSID = accountSID
		cfg.Twilio.AuthToken = authToken
		cfg.Twilio.FromNumber = fromNumber
	}
}

// WithRadarr points the test config at a stub Radarr server.
func WithRadarr(url, apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Radarr.URL = url
		cfg.Radarr.APIKey = apiKey
	}
}
