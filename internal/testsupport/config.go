package testsupport

import (
	"path/filepath"
	"testing"

	"vikisync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and placeholder credentials for every service.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Viki.Cookies = map[string]string{
		"session__id":   "test-session",
		"_viki_session": "test-viki-session",
	}
	cfg.Trakt.ClientID = "test-client"
	cfg.Trakt.AccessToken = "test-token"
	cfg.TVDB.APIKey = "test-key"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithoutCredentials strips all service credentials from the test config.
func WithoutCredentials() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Viki.Cookies = nil
		cfg.Viki.CookiesRaw = ""
		cfg.Trakt.ClientID = ""
		cfg.Trakt.AccessToken = ""
		cfg.TVDB.APIKey = ""
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}
