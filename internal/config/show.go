package config

import (
	"fmt"
	"io"
)

// maskedSecret replaces secrets in rendered output.
const maskedSecret = "********"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers "config show"; secrets are masked.
func RenderEffective(rp *ResolvedProfile, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration for profile %q\n\n", rp.Name)

	renderProfileSection(ew, rp)

	ew.printf("[polling]\n")
	ew.printf("  sleep_seconds_polling = %d\n", rp.Polling.SleepSecondsPolling)
	ew.printf("  sleep_seconds_onetime = %d\n", rp.Polling.SleepSecondsOnetime)
	ew.printf("  max_attempts          = %d\n\n", rp.Polling.MaxAttempts)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", rp.Logging.LogLevel)
	ew.printf("  log_format = %q\n", rp.Logging.LogFormat)

	if rp.Logging.LogFile != "" {
		ew.printf("  log_file   = %q\n", rp.Logging.LogFile)
	}

	ew.printf("\n[network]\n")
	ew.printf("  connect_timeout = %q\n", rp.Network.ConnectTimeout)
	ew.printf("  request_timeout = %q\n", rp.Network.RequestTimeout)

	if rp.Network.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", rp.Network.UserAgent)
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderProfileSection(ew *errWriter, rp *ResolvedProfile) {
	ew.printf("[profile]\n")
	ew.printf("  name               = %q\n", rp.Name)
	ew.printf("  server             = %q\n", rp.Server)
	ew.printf("  username           = %q\n", rp.Username)
	ew.printf("  password           = %q\n", mask(rp.Password))

	if rp.Token != "" {
		ew.printf("  token              = %q\n", mask(rp.Token))
	}

	if rp.AuthURL != "" {
		ew.printf("  auth_url           = %q\n", rp.AuthURL)
	}

	ew.printf("  gateway            = %t\n", rp.Gateway)

	if rp.GatewayURL != "" {
		ew.printf("  gateway_url        = %q\n", rp.GatewayURL)
	}

	ew.printf("  ignore_certs       = %t\n", rp.IgnoreCerts)
	ew.printf("  container_engine   = %q\n", rp.ContainerEngine)
	ew.printf("  container_registry = %q\n\n", rp.Registry())
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}

	return maskedSecret
}
