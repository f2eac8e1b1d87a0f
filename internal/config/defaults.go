package config

const (
	defaultDataDir              = "~/.local/share/marquee"
	defaultLogDir               = "~/.local/share/marquee/logs"
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultTMDBLanguage         = "en-US"
	defaultRadarrURL            = "http://127.0.0.1:7878"
	defaultRadarrRootFolder     = "/movies"
	defaultRadarrTimeoutSeconds = 30
	defaultTwilioBaseURL        = "https://api.twilio.com"
	defaultTwilioTimeout        = 15
	defaultLLMBaseURL           = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel             = "gpt-4o-mini"
	defaultLLMTimeoutSeconds    = 30
	defaultPollInterval         = 30
	defaultErrorRetryInterval   = 15
	defaultConflictRetries      = 3
	defaultAgentMaxIterations   = 6
	defaultAgentHistoryLimit    = 20
	defaultFallbackMessage      = "Sorry, I couldn't work out what to do with that. Try texting a movie title."
	defaultNotifySendRetries    = 3
	defaultNotifyRetryBackoff   = 5
	defaultWebhookBind          = "127.0.0.1:7810"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Radarr: Radarr{
			URL:              defaultRadarrURL,
			QualityProfileID: 1,
			RootFolder:       defaultRadarrRootFolder,
			TimeoutSeconds:   defaultRadarrTimeoutSeconds,
		},
		Twilio: Twilio{
			BaseURL:        defaultTwilioBaseURL,
			TimeoutSeconds: defaultTwilioTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Monitor: Monitor{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			ConflictRetries:    defaultConflictRetries,
		},
		Agent: Agent{
			MaxIterations:   defaultAgentMaxIterations,
			HistoryLimit:    defaultAgentHistoryLimit,
			FallbackMessage: defaultFallbackMessage,
		},
		Notify: Notify{
			SendRetries:         defaultNotifySendRetries,
			RetryBackoffSeconds: defaultNotifyRetryBackoff,
		},
		Webhook: Webhook{
			Bind: defaultWebhookBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
