package config

const (
	defaultConfigPath            = "~/.config/racefeed/config.toml"
	defaultDataDir               = "~/.local/share/racefeed"
	defaultLogDir                = "~/.local/share/racefeed/logs"
	defaultCheckpointDir         = "~/.local/share/racefeed/checkpoints"
	defaultLockDir               = "~/.local/share/racefeed/locks"
	defaultQueueDB               = "queue.db"
	defaultResultsDB             = "results.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultNotifyRequestTimeout  = 10
	defaultPollInterval          = 60
	defaultErrorRetryInterval    = 30
	defaultSettlingDays          = 5
	defaultDelayedRetryMinutes   = 60
	defaultReaperGraceMinutes    = 10
	defaultTimeoutMinutes        = 30
	defaultRequestIntervalMS     = 500
	defaultFlushEvery            = 1000
	defaultHalfMarathonLength    = 21098
	defaultUserAgent             = "racefeed/0.1 (+results ingestion)"
	defaultRussiaRunningBaseURL  = "https://russiarunning.com"
	defaultMikaTimingBaseURL     = "https://results.mikatiming.com"
	defaultAthlinksBaseURL       = "https://results.athlinks.com"
	defaultTrackShackBaseURL     = "https://www.trackshackresults.com"
	defaultTrackShackIntervalMS  = 1500
	defaultMikaTimingTimeoutMins = 60
)

func defaultPlatforms() map[string]Platform {
	return map[string]Platform{
		"russiarunning": {
			Enabled:           true,
			BaseURL:           defaultRussiaRunningBaseURL,
			RequestIntervalMS: defaultRequestIntervalMS,
			TimeoutMinutes:    defaultTimeoutMinutes,
			FlushEvery:        defaultFlushEvery,
			UserAgent:         defaultUserAgent,
		},
		"mikatiming": {
			Enabled:           true,
			BaseURL:           defaultMikaTimingBaseURL,
			RequestIntervalMS: defaultRequestIntervalMS,
			TimeoutMinutes:    defaultMikaTimingTimeoutMins,
			FlushEvery:        defaultFlushEvery,
			UserAgent:         defaultUserAgent,
		},
		"athlinks": {
			Enabled:           true,
			BaseURL:           defaultAthlinksBaseURL,
			RequestIntervalMS: defaultRequestIntervalMS,
			TimeoutMinutes:    defaultTimeoutMinutes,
			FlushEvery:        defaultFlushEvery,
			UserAgent:         defaultUserAgent,
		},
		"trackshack": {
			Enabled:           true,
			BaseURL:           defaultTrackShackBaseURL,
			RequestIntervalMS: defaultTrackShackIntervalMS,
			TimeoutMinutes:    defaultTimeoutMinutes,
			FlushEvery:        defaultFlushEvery,
			UserAgent:         defaultUserAgent,
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			CheckpointDir: defaultCheckpointDir,
			LockDir:       defaultLockDir,
		},
		Store: Store{
			QueueDB:   defaultQueueDB,
			ResultsDB: defaultResultsDB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Fatal:          true,
			DelayedRetry:   true,
			Reaper:         true,
		},
		Scheduler: Scheduler{
			PollInterval:          defaultPollInterval,
			ErrorRetryInterval:    defaultErrorRetryInterval,
			SettlingDays:          defaultSettlingDays,
			DelayedRetryMinutes:   defaultDelayedRetryMinutes,
			ReaperGraceMinutes:    defaultReaperGraceMinutes,
			DefaultTimeoutMinutes: defaultTimeoutMinutes,
		},
		Platforms: defaultPlatforms(),
		Distances: Distances{
			DefaultLength: defaultHalfMarathonLength,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
