// Package testutil provides shared environment helpers for E2E tests and
// the integration bootstrap. E2E tests drive the built binary and cannot
// import internal/, so the helpers stay small.
package testutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the E2E suite.
const (
	EnvAllowedServers = "GALAXYKIT_ALLOWED_TEST_SERVERS"
	EnvE2EServer      = "GALAXYKIT_E2E_SERVER"
	EnvE2EUsername    = "GALAXYKIT_E2E_USERNAME"
	EnvE2EPassword    = "GALAXYKIT_E2E_PASSWORD"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	if _, err := os.Stat(envPath); err != nil {
		return
	}

	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parsing %s: %v\n", envPath, err)
		os.Exit(1)
	}
}

// ServerAllowed reports whether server is in the comma-separated allowlist.
// Entries match on scheme, host and port; paths are ignored.
func ServerAllowed(allowlist, server string) bool {
	want := serverOrigin(server)
	if want == "" {
		return false
	}

	for _, entry := range strings.Split(allowlist, ",") {
		if serverOrigin(strings.TrimSpace(entry)) == want {
			return true
		}
	}

	return false
}

func serverOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// ValidateAllowlist crashes the process if GALAXYKIT_ALLOWED_TEST_SERVERS
// is not set or if the server named by serverEnvVar is not in it. The E2E
// suite creates and deletes users, so it must never point at production.
func ValidateAllowlist(serverEnvVar string) string {
	allowlist := os.Getenv(EnvAllowedServers)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedServers)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=http://localhost:5001\n", EnvAllowedServers)
		os.Exit(1)
	}

	server := os.Getenv(serverEnvVar)
	if server == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", serverEnvVar)
		os.Exit(1)
	}

	if !ServerAllowed(allowlist, server) {
		fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", serverEnvVar, server, EnvAllowedServers, allowlist)
		os.Exit(1)
	}

	return server
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// Getenv returns the variable or def when it is unset.
func Getenv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	return def
}
