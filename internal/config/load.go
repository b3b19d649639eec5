package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file path: CLI > env > default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	return cfgPath
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns a fully resolved and validated profile ready for use.
func Resolve(env EnvOverrides, cli CLIOverrides) (*ResolvedProfile, error) {
	// 1. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(ConfigPath(env, cli))
	if err != nil {
		return nil, err
	}

	// 2. Resolve profile name: CLI > env > "default"
	profileName := cli.Profile
	if profileName == "" {
		profileName = env.Profile
	}

	// 3. Without profiles, synthesize one under the requested name so
	// --profile works without a config file.
	if len(cfg.Profiles) == 0 {
		syntheticName := defaultProfileName
		if profileName != "" {
			syntheticName = profileName
		}

		cfg.Profiles = map[string]Profile{syntheticName: defaultProfile()}
	}

	// 4. Merge global + profile
	resolved, err := ResolveProfile(cfg, profileName)
	if err != nil {
		return nil, err
	}

	// 5. Apply env overrides
	if err := applyEnvOverrides(resolved, env); err != nil {
		return nil, err
	}

	// 6. Apply CLI overrides (pointer fields: nil = not specified)
	applyCLIOverrides(resolved, cli)

	// 7. Validate the final resolved profile
	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

func applyEnvOverrides(rp *ResolvedProfile, env EnvOverrides) error {
	if env.Server != "" {
		rp.Server = env.Server
	}

	var errs []error

	setInt := func(name, raw string, dst *int) {
		if raw == "" {
			return
		}

		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: must be an integer, got %q", name, raw))
			return
		}

		*dst = n
	}

	setInt(EnvSleepPolling, env.SleepPolling, &rp.Polling.SleepSecondsPolling)
	setInt(EnvSleepOnetime, env.SleepOnetime, &rp.Polling.SleepSecondsOnetime)
	setInt(EnvPollingMaxAttempts, env.MaxAttempts, &rp.Polling.MaxAttempts)

	return errors.Join(errs...)
}

func applyCLIOverrides(rp *ResolvedProfile, cli CLIOverrides) {
	setString := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}

	setString(cli.Server, &rp.Server)
	setString(cli.Username, &rp.Username)
	setString(cli.Password, &rp.Password)
	setString(cli.Token, &rp.Token)
	setString(cli.AuthURL, &rp.AuthURL)
	setString(cli.GatewayURL, &rp.GatewayURL)
	setString(cli.LogLevel, &rp.Logging.LogLevel)

	if cli.Gateway != nil {
		rp.Gateway = *cli.Gateway
	}

	if cli.IgnoreCerts != nil {
		rp.IgnoreCerts = *cli.IgnoreCerts
	}
}
