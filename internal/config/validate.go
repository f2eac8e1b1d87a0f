package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateRadarr(); err != nil {
		return err
	}
	if err := c.validateTwilio(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/marquee/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'marquee config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateRadarr() error {
	if strings.TrimSpace(c.Radarr.URL) == "" {
		return errors.New("radarr.url must be set")
	}
	if c.Radarr.APIKey == "" {
		return errors.New("radarr.api_key is required. Set RADARR_API_KEY env var or edit the config file")
	}
	if strings.TrimSpace(c.Radarr.RootFolder) == "" {
		return errors.New("radarr.root_folder must be set")
	}
	if c.Radarr.QualityProfileID <= 0 {
		return errors.New("radarr.quality_profile_id must be a positive Radarr profile id")
	}
	return nil
}

func (c *Config) validateTwilio() error {
	// Twilio is optional: without credentials the notifier runs in noop mode
	// and inbound webhooks are still accepted.
	if c.Twilio.AccountSID == "" && c.Twilio.AuthToken == "" && c.Twilio.FromNumber == "" {
		return nil
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return errors.New("twilio.account_sid and twilio.auth_token must both be set")
	}
	if strings.TrimSpace(c.Twilio.FromNumber) == "" {
		return errors.New("twilio.from_number must be set when twilio credentials are configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
