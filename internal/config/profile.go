package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Profile is a single server configuration within a TOML config file.
// Per-profile section overrides (e.g. [profile.stage.polling]) completely
// replace the corresponding global section.
type Profile struct {
	Server            string `toml:"server"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	Token             string `toml:"token"`
	AuthURL           string `toml:"auth_url"`
	Gateway           bool   `toml:"gateway"`
	GatewayURL        string `toml:"gateway_url"`
	IgnoreCerts       bool   `toml:"ignore_certs"`
	ContainerEngine   string `toml:"container_engine"`
	ContainerRegistry string `toml:"container_registry"`

	// Per-profile section overrides (completely replace global sections).
	Polling *PollingConfig `toml:"polling,omitempty"`
	Logging *LoggingConfig `toml:"logging,omitempty"`
	Network *NetworkConfig `toml:"network,omitempty"`
}

// ResolvedProfile contains profile fields plus effective config sections
// after merging global defaults, per-profile overrides, environment and
// CLI flags. This is the final product consumed by the CLI.
type ResolvedProfile struct {
	Name              string
	Server            string
	Username          string
	Password          string
	Token             string
	AuthURL           string
	Gateway           bool
	GatewayURL        string
	IgnoreCerts       bool
	ContainerEngine   string
	ContainerRegistry string

	Polling PollingConfig
	Logging LoggingConfig
	Network NetworkConfig
}

// PollInterval returns the task polling interval.
func (rp *ResolvedProfile) PollInterval() time.Duration {
	return time.Duration(rp.Polling.SleepSecondsPolling) * time.Second
}

// OnetimeDelay returns the pause before a repeated gateway replay.
func (rp *ResolvedProfile) OnetimeDelay() time.Duration {
	return time.Duration(rp.Polling.SleepSecondsOnetime) * time.Second
}

// Registry returns the container registry, defaulting to the API host on
// port 5001.
func (rp *ResolvedProfile) Registry() string {
	if rp.ContainerRegistry != "" {
		return rp.ContainerRegistry
	}

	u, err := url.Parse(rp.Server)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	return net.JoinHostPort(u.Hostname(), defaultRegistryPort)
}

// ConnectTimeout parses network.connect_timeout. Validation guarantees it
// parses; "0" means no limit.
func (rp *ResolvedProfile) ConnectTimeout() time.Duration {
	return parseDurationOrZero(rp.Network.ConnectTimeout)
}

// RequestTimeout parses network.request_timeout.
func (rp *ResolvedProfile) RequestTimeout() time.Duration {
	return parseDurationOrZero(rp.Network.RequestTimeout)
}

func parseDurationOrZero(s string) time.Duration {
	if s == "" || s == "0" {
		return 0
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}

// ResolveProfile merges global defaults with profile-specific overrides.
// If profileName is empty, the default profile is selected. Section-level
// override semantics are "replace, not merge".
func ResolveProfile(cfg *Config, profileName string) (*ResolvedProfile, error) {
	name, err := resolveProfileName(cfg, profileName)
	if err != nil {
		return nil, err
	}

	profile := cfg.Profiles[name]

	resolved := &ResolvedProfile{
		Name:              name,
		Server:            profile.Server,
		Username:          profile.Username,
		Password:          profile.Password,
		Token:             profile.Token,
		AuthURL:           profile.AuthURL,
		Gateway:           profile.Gateway,
		GatewayURL:        profile.GatewayURL,
		IgnoreCerts:       profile.IgnoreCerts,
		ContainerEngine:   profile.ContainerEngine,
		ContainerRegistry: profile.ContainerRegistry,
	}

	fillProfileDefaults(resolved)
	resolveProfileSections(resolved, &profile, cfg)

	resolved.Logging.LogFile = expandTilde(resolved.Logging.LogFile)

	return resolved, nil
}

// fillProfileDefaults sets the development-server defaults for fields a
// profile leaves empty. A profile carrying a token keeps the password
// empty so token credentials are not mixed with basic ones.
func fillProfileDefaults(rp *ResolvedProfile) {
	if rp.Server == "" {
		rp.Server = DefaultServer
	}

	if rp.Username == "" {
		rp.Username = DefaultUsername
	}

	if rp.Password == "" && rp.Token == "" {
		rp.Password = DefaultPassword
	}

	if rp.ContainerEngine == "" {
		rp.ContainerEngine = DefaultContainerEngine
	}
}

// resolveProfileSections fills effective config sections on the resolved profile.
func resolveProfileSections(resolved *ResolvedProfile, profile *Profile, cfg *Config) {
	resolved.Polling = resolveSection(profile.Polling, cfg.Polling)
	resolved.Logging = resolveSection(profile.Logging, cfg.Logging)
	resolved.Network = resolveSection(profile.Network, cfg.Network)
}

// resolveSection returns the profile override if present, otherwise the global value.
func resolveSection[T any](profileOverride *T, global T) T {
	if profileOverride != nil {
		return *profileOverride
	}

	return global
}

// resolveProfileName determines which profile to use.
func resolveProfileName(cfg *Config, profileName string) (string, error) {
	if len(cfg.Profiles) == 0 {
		return "", fmt.Errorf("no profiles defined in config")
	}

	if profileName != "" {
		if _, ok := cfg.Profiles[profileName]; !ok {
			return "", fmt.Errorf("profile %q not found in config", profileName)
		}

		return profileName, nil
	}

	if _, ok := cfg.Profiles[defaultProfileName]; ok {
		return defaultProfileName, nil
	}

	if len(cfg.Profiles) == 1 {
		for name := range cfg.Profiles {
			return name, nil
		}
	}

	return "", fmt.Errorf(
		"multiple profiles defined but none named %q; use --profile to select one",
		defaultProfileName)
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
