package config

const (
	defaultDataDir           = "~/.local/share/vikisync"
	defaultLogDir            = "~/.local/share/vikisync/logs"
	defaultVikiBaseURL       = "https://www.viki.com"
	defaultVikiAPIBaseURL    = "https://api.viki.io/v4"
	defaultTraktBaseURL      = "https://api.trakt.tv"
	defaultTVDBBaseURL       = "https://api4.thetvdb.com/v4"
	defaultMDLBaseURL        = "https://mydramalist.com"
	defaultCompleteThreshold = 0.9
	defaultSeason            = 1
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Viki: Viki{
			BaseURL:    defaultVikiBaseURL,
			APIBaseURL: defaultVikiAPIBaseURL,
		},
		Trakt: Trakt{
			BaseURL: defaultTraktBaseURL,
		},
		TVDB: TVDB{
			BaseURL: defaultTVDBBaseURL,
		},
		MDL: MDL{
			Enabled: true,
			BaseURL: defaultMDLBaseURL,
		},
		Sync: Sync{
			CompleteThreshold: defaultCompleteThreshold,
			DefaultSeason:     defaultSeason,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Sync:           true,
			Matching:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
