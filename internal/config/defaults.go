package config

// Default values for configuration options. These are "layer 0" of the
// override chain and match a local development server.
const (
	DefaultServer          = "http://localhost:8002/api/automation-hub/"
	DefaultUsername        = "admin"
	DefaultPassword        = "admin"
	DefaultContainerEngine = "podman"
	defaultSleepPolling    = 10
	defaultSleepOnetime    = 10
	defaultMaxAttempts     = 10
	defaultLogLevel        = "warn"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultRequestTimeout  = "0"
	defaultProfileName     = "default"
	containerEnginePodman  = "podman"
	containerEngineDocker  = "docker"
	defaultRegistryPort    = "5001"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Profiles: make(map[string]Profile),
		Polling:  defaultPollingConfig(),
		Logging:  defaultLoggingConfig(),
		Network:  defaultNetworkConfig(),
	}
}

func defaultPollingConfig() PollingConfig {
	return PollingConfig{
		SleepSecondsPolling: defaultSleepPolling,
		SleepSecondsOnetime: defaultSleepOnetime,
		MaxAttempts:         defaultMaxAttempts,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		RequestTimeout: defaultRequestTimeout,
	}
}

// defaultProfile is the synthetic profile used when the config file
// defines none.
func defaultProfile() Profile {
	return Profile{
		Server:          DefaultServer,
		Username:        DefaultUsername,
		Password:        DefaultPassword,
		ContainerEngine: DefaultContainerEngine,
	}
}
