package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeViki()
	c.normalizeTrakt()
	c.normalizeTVDB()
	c.normalizeMDL()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeViki() {
	c.Viki.Token = strings.TrimSpace(c.Viki.Token)
	c.Viki.UserID = strings.TrimSpace(c.Viki.UserID)
	c.Viki.BaseURL = strings.TrimSpace(c.Viki.BaseURL)
	if c.Viki.BaseURL == "" {
		c.Viki.BaseURL = defaultVikiBaseURL
	}
	c.Viki.APIBaseURL = strings.TrimSpace(c.Viki.APIBaseURL)
	if c.Viki.APIBaseURL == "" {
		c.Viki.APIBaseURL = defaultVikiAPIBaseURL
	}
}

func (c *Config) normalizeTrakt() {
	c.Trakt.ClientID = strings.TrimSpace(c.Trakt.ClientID)
	if c.Trakt.ClientID == "" {
		if value, ok := os.LookupEnv("TRAKT_CLIENT_ID"); ok {
			c.Trakt.ClientID = strings.TrimSpace(value)
		}
	}
	c.Trakt.ClientSecret = strings.TrimSpace(c.Trakt.ClientSecret)
	if c.Trakt.ClientSecret == "" {
		if value, ok := os.LookupEnv("TRAKT_CLIENT_SECRET"); ok {
			c.Trakt.ClientSecret = strings.TrimSpace(value)
		}
	}
	c.Trakt.AccessToken = strings.TrimSpace(c.Trakt.AccessToken)
	if c.Trakt.AccessToken == "" {
		if value, ok := os.LookupEnv("TRAKT_ACCESS_TOKEN"); ok {
			c.Trakt.AccessToken = strings.TrimSpace(value)
		}
	}
	c.Trakt.BaseURL = strings.TrimSpace(c.Trakt.BaseURL)
	if c.Trakt.BaseURL == "" {
		c.Trakt.BaseURL = defaultTraktBaseURL
	}
}

func (c *Config) normalizeTVDB() {
	c.TVDB.APIKey = strings.TrimSpace(c.TVDB.APIKey)
	if c.TVDB.APIKey == "" {
		if value, ok := os.LookupEnv("TVDB_API_KEY"); ok {
			c.TVDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TVDB.BaseURL = strings.TrimSpace(c.TVDB.BaseURL)
	if c.TVDB.BaseURL == "" {
		c.TVDB.BaseURL = defaultTVDBBaseURL
	}
}

func (c *Config) normalizeMDL() {
	c.MDL.BaseURL = strings.TrimSpace(c.MDL.BaseURL)
	if c.MDL.BaseURL == "" {
		c.MDL.BaseURL = defaultMDLBaseURL
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.CompleteThreshold <= 0 {
		c.Sync.CompleteThreshold = defaultCompleteThreshold
	}
	if c.Sync.DefaultSeason <= 0 {
		c.Sync.DefaultSeason = defaultSeason
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
