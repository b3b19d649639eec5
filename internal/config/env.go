package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig             = "GALAXYKIT_CONFIG"
	EnvProfile            = "GALAXYKIT_PROFILE"
	EnvServer             = "GALAXYKIT_SERVER"
	EnvSleepPolling       = "GALAXYKIT_SLEEP_SECONDS_POLLING"
	EnvSleepOnetime       = "GALAXYKIT_SLEEP_SECONDS_ONETIME"
	EnvPollingMaxAttempts = "GALAXYKIT_POLLING_MAX_ATTEMPTS"
)

// EnvOverrides holds values derived from environment variables. Numeric
// values stay strings here; Resolve parses and reports them.
type EnvOverrides struct {
	ConfigPath   string // GALAXYKIT_CONFIG: override config file path
	Profile      string // GALAXYKIT_PROFILE: active profile name
	Server       string // GALAXYKIT_SERVER: API root override
	SleepPolling string // GALAXYKIT_SLEEP_SECONDS_POLLING
	SleepOnetime string // GALAXYKIT_SLEEP_SECONDS_ONETIME
	MaxAttempts  string // GALAXYKIT_POLLING_MAX_ATTEMPTS
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		Profile:      os.Getenv(EnvProfile),
		Server:       os.Getenv(EnvServer),
		SleepPolling: os.Getenv(EnvSleepPolling),
		SleepOnetime: os.Getenv(EnvSleepOnetime),
		MaxAttempts:  os.Getenv(EnvPollingMaxAttempts),
	}
}
