// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for galaxykit. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags) with
// per-profile section-level overrides that completely replace global sections.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// It contains named server profiles and global configuration sections. When
// a profile defines its own section (e.g. [profile.stage.polling]), that
// section completely replaces the global one. Fields are not merged.
type Config struct {
	Profiles map[string]Profile `toml:"profile"`
	Polling  PollingConfig      `toml:"polling"`
	Logging  LoggingConfig      `toml:"logging"`
	Network  NetworkConfig      `toml:"network"`
}

// PollingConfig controls task polling and gateway replay pacing. Values are
// whole seconds.
type PollingConfig struct {
	SleepSecondsPolling int `toml:"sleep_seconds_polling"`
	SleepSecondsOnetime int `toml:"sleep_seconds_onetime"`
	MaxAttempts         int `toml:"max_attempts"`
}

// LoggingConfig controls log output: level, destination and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value", so --gateway=false can switch off
// a profile that enables the gateway.
type CLIOverrides struct {
	ConfigPath  string // --config flag (empty = use default)
	Profile     string // --profile flag (empty = use default)
	Server      *string
	Username    *string
	Password    *string
	Token       *string
	AuthURL     *string
	Gateway     *bool
	GatewayURL  *string
	IgnoreCerts *bool
	LogLevel    *string
}
