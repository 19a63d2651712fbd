package config

import (
	"errors"
	"fmt"
	"strings"
)

// requiredVikiCookies are the session cookies the watch-markers endpoint needs.
var requiredVikiCookies = []string{"session__id", "_viki_session"}

// Validate ensures the configuration is usable. Credentials for individual
// matching tiers are deliberately not required here; a missing key only
// disables that tier at runtime.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// ValidateVikiCredentials checks that the source platform credentials are
// complete enough to fetch watch history. Called by commands that talk to
// Viki, not during plain config load.
func (c *Config) ValidateVikiCredentials() error {
	if c.Viki.Token == "" {
		return errors.New("viki.token must be set to fetch watch history")
	}
	if c.Viki.UserID == "" {
		return errors.New("viki.user_id must be set to fetch watch history")
	}
	cookies := c.VikiCookies()
	var missing []string
	for _, name := range requiredVikiCookies {
		if _, ok := cookies[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("viki.cookies missing required cookies: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.CompleteThreshold <= 0 || c.Sync.CompleteThreshold > 1 {
		return errors.New("sync.complete_threshold must be between 0 and 1")
	}
	if c.Sync.DefaultSeason < 1 {
		return errors.New("sync.default_season must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
