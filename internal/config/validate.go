package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// Validation range constants.
const (
	minSleepSeconds   = 0
	maxSleepSeconds   = 3600
	minMaxAttempts    = 1
	maxMaxAttempts    = 10_000
	minConnectTimeout = 1 * time.Second
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

var validContainerEngines = map[string]bool{
	"":                    true,
	containerEnginePodman: true,
	containerEngineDocker: true,
}

// Validate checks all configuration values and returns all errors found.
// Every error is accumulated so users can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateProfiles(cfg.Profiles)...)
	errs = append(errs, validatePolling("polling", &cfg.Polling)...)
	errs = append(errs, validateLogging("logging", &cfg.Logging)...)
	errs = append(errs, validateNetwork("network", &cfg.Network)...)

	return errors.Join(errs...)
}

// ValidateResolved checks cross-field constraints on a fully resolved
// profile, after env and CLI overrides have been applied.
func ValidateResolved(rp *ResolvedProfile) error {
	var errs []error

	if err := validateAbsoluteURL("server", rp.Server); err != nil {
		errs = append(errs, err)
	}

	if rp.GatewayURL != "" {
		if err := validateAbsoluteURL("gateway_url", rp.GatewayURL); err != nil {
			errs = append(errs, err)
		}
	}

	if rp.AuthURL != "" {
		if err := validateAbsoluteURL("auth_url", rp.AuthURL); err != nil {
			errs = append(errs, err)
		}
	}

	if rp.Gateway && rp.Token != "" {
		errs = append(errs, errors.New("gateway: cannot be combined with a token"))
	}

	if !validContainerEngines[rp.ContainerEngine] {
		errs = append(errs, fmt.Errorf("container_engine: must be podman or docker, got %q", rp.ContainerEngine))
	}

	errs = append(errs, validatePolling("polling", &rp.Polling)...)
	errs = append(errs, validateLogging("logging", &rp.Logging)...)

	return errors.Join(errs...)
}

// validateProfiles checks all profile-level constraints. Profiles are
// visited in name order so error reports are stable.
func validateProfiles(profiles map[string]Profile) []error {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	var errs []error

	for _, name := range names {
		p := profiles[name]
		prefix := "profile." + name

		if p.Server != "" {
			if err := validateAbsoluteURL(prefix+".server", p.Server); err != nil {
				errs = append(errs, err)
			}
		}

		if p.GatewayURL != "" {
			if err := validateAbsoluteURL(prefix+".gateway_url", p.GatewayURL); err != nil {
				errs = append(errs, err)
			}
		}

		if !validContainerEngines[p.ContainerEngine] {
			errs = append(errs, fmt.Errorf("%s.container_engine: must be podman or docker, got %q",
				prefix, p.ContainerEngine))
		}

		if p.Polling != nil {
			errs = append(errs, validatePolling(prefix+".polling", p.Polling)...)
		}

		if p.Logging != nil {
			errs = append(errs, validateLogging(prefix+".logging", p.Logging)...)
		}

		if p.Network != nil {
			errs = append(errs, validateNetwork(prefix+".network", p.Network)...)
		}
	}

	return errs
}

func validateAbsoluteURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: must be an http or https URL, got %q", field, raw)
	}

	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", field, raw)
	}

	return nil
}

func validatePolling(section string, p *PollingConfig) []error {
	var errs []error

	check := func(key string, v int) {
		if v < minSleepSeconds || v > maxSleepSeconds {
			errs = append(errs, fmt.Errorf("%s.%s: must be between %d and %d, got %d",
				section, key, minSleepSeconds, maxSleepSeconds, v))
		}
	}

	check("sleep_seconds_polling", p.SleepSecondsPolling)
	check("sleep_seconds_onetime", p.SleepSecondsOnetime)

	if p.MaxAttempts < minMaxAttempts || p.MaxAttempts > maxMaxAttempts {
		errs = append(errs, fmt.Errorf("%s.max_attempts: must be between %d and %d, got %d",
			section, minMaxAttempts, maxMaxAttempts, p.MaxAttempts))
	}

	return errs
}

func validateLogging(section string, l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("%s.log_level: must be one of debug, info, warn, error; got %q",
			section, l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("%s.log_format: must be one of auto, text, json; got %q",
			section, l.LogFormat))
	}

	return errs
}

func validateNetwork(section string, n *NetworkConfig) []error {
	var errs []error

	if n.ConnectTimeout != "0" && n.ConnectTimeout != "" {
		d, err := time.ParseDuration(n.ConnectTimeout)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s.connect_timeout: %w", section, err))
		case d < minConnectTimeout:
			errs = append(errs, fmt.Errorf("%s.connect_timeout: must be at least %s, got %s",
				section, minConnectTimeout, n.ConnectTimeout))
		}
	}

	if n.RequestTimeout != "0" && n.RequestTimeout != "" {
		if _, err := time.ParseDuration(n.RequestTimeout); err != nil {
			errs = append(errs, fmt.Errorf("%s.request_timeout: %w", section, err))
		}
	}

	return errs
}
