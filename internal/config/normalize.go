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
	c.normalizeTMDB()
	c.normalizeRadarr()
	c.normalizeTwilio()
	c.normalizeLLM()
	c.normalizeIntervals()
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

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(c.TMDB.Language) == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeRadarr() {
	if c.Radarr.APIKey == "" {
		if value, ok := os.LookupEnv("RADARR_API_KEY"); ok {
			c.Radarr.APIKey = strings.TrimSpace(value)
		}
	}
	c.Radarr.URL = strings.TrimRight(strings.TrimSpace(c.Radarr.URL), "/")
	if c.Radarr.TimeoutSeconds <= 0 {
		c.Radarr.TimeoutSeconds = defaultRadarrTimeoutSeconds
	}
}

func (c *Config) normalizeTwilio() {
	if c.Twilio.AccountSID == "" {
		if value, ok := os.LookupEnv("TWILIO_ACCOUNT_SID"); ok {
			c.Twilio.AccountSID = strings.TrimSpace(value)
		}
	}
	if c.Twilio.AuthToken == "" {
		if value, ok := os.LookupEnv("TWILIO_AUTH_TOKEN"); ok {
			c.Twilio.AuthToken = strings.TrimSpace(value)
		}
	}
	if c.Twilio.FromNumber == "" {
		if value, ok := os.LookupEnv("TWILIO_PHONE_NUMBER"); ok {
			c.Twilio.FromNumber = strings.TrimSpace(value)
		}
	}
	c.Twilio.BaseURL = strings.TrimRight(strings.TrimSpace(c.Twilio.BaseURL), "/")
	if c.Twilio.BaseURL == "" {
		c.Twilio.BaseURL = defaultTwilioBaseURL
	}
	if c.Twilio.TimeoutSeconds <= 0 {
		c.Twilio.TimeoutSeconds = defaultTwilioTimeout
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeIntervals() {
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = defaultPollInterval
	}
	if c.Monitor.ErrorRetryInterval <= 0 {
		c.Monitor.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Monitor.ConflictRetries <= 0 {
		c.Monitor.ConflictRetries = defaultConflictRetries
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = defaultAgentMaxIterations
	}
	if c.Agent.HistoryLimit <= 0 {
		c.Agent.HistoryLimit = defaultAgentHistoryLimit
	}
	if strings.TrimSpace(c.Agent.FallbackMessage) == "" {
		c.Agent.FallbackMessage = defaultFallbackMessage
	}
	if c.Notify.SendRetries <= 0 {
		c.Notify.SendRetries = defaultNotifySendRetries
	}
	if c.Notify.RetryBackoffSeconds <= 0 {
		c.Notify.RetryBackoffSeconds = defaultNotifyRetryBackoff
	}
	c.Webhook.Bind = strings.TrimSpace(c.Webhook.Bind)
	if c.Webhook.Bind == "" {
		c.Webhook.Bind = defaultWebhookBind
	}
	c.Webhook.AuthToken = strings.TrimSpace(c.Webhook.AuthToken)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
