package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[polling]
sleep_seconds_polling = 2
sleep_seconds_onetime = 3
max_attempts = 40

[logging]
log_level = "debug"
log_file = "/tmp/galaxykit.log"
log_format = "json"

[network]
connect_timeout = "30s"
request_timeout = "2m"
user_agent = "galaxykit-test"

[profile.default]
server = "https://hub.example.com/api/automation-hub/"
username = "jdoe"
password = "secret"
container_engine = "docker"
container_registry = "hub.example.com:5001"

[profile.stage]
server = "https://stage.example.com/api/galaxy/"
gateway = true
gateway_url = "https://stage.example.com/"
ignore_certs = true

[profile.stage.polling]
sleep_seconds_polling = 1
sleep_seconds_onetime = 1
max_attempts = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PollingConfig{SleepSecondsPolling: 2, SleepSecondsOnetime: 3, MaxAttempts: 40}, cfg.Polling)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, "2m", cfg.Network.RequestTimeout)

	require.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "docker", cfg.Profiles["default"].ContainerEngine)
	assert.True(t, cfg.Profiles["stage"].Gateway)
	require.NotNil(t, cfg.Profiles["stage"].Polling)
	assert.Equal(t, 5, cfg.Profiles["stage"].Polling.MaxAttempts)
	assert.Nil(t, cfg.Profiles["default"].Polling)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[polling]\nmax_attempts = 3\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Polling.MaxAttempts)
	assert.Equal(t, defaultSleepPolling, cfg.Polling.SleepSecondsPolling)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoad_ParseError(t *testing.T) {
	path := writeTestConfig(t, "[polling\nmax_attempts = 3\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"loud\"\nlog_format = \"xml\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "log_format")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_NoConfigFile(t *testing.T) {
	rp, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}, CLIOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "default", rp.Name)
	assert.Equal(t, DefaultServer, rp.Server)
	assert.Equal(t, "admin", rp.Username)
	assert.Equal(t, "admin", rp.Password)
	assert.Equal(t, "podman", rp.ContainerEngine)
	assert.Equal(t, 10*time.Second, rp.PollInterval())
	assert.Equal(t, "localhost:5001", rp.Registry())
}

func TestResolve_SyntheticProfileUsesRequestedName(t *testing.T) {
	rp, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")},
		CLIOverrides{Profile: "ci"})
	require.NoError(t, err)
	assert.Equal(t, "ci", rp.Name)
}

func TestResolve_ProfileSectionReplacesGlobal(t *testing.T) {
	path := writeTestConfig(t, `
[polling]
sleep_seconds_polling = 7
sleep_seconds_onetime = 7
max_attempts = 7

[profile.stage]
server = "https://stage.example.com/api/galaxy/"

[profile.stage.polling]
sleep_seconds_polling = 1
max_attempts = 2

[profile.prod]
server = "https://prod.example.com/api/galaxy/"
`)

	rp, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path, Profile: "stage"})
	require.NoError(t, err)

	// No merging: the unset onetime value is zero, not the global 7.
	assert.Equal(t, PollingConfig{SleepSecondsPolling: 1, MaxAttempts: 2}, rp.Polling)

	rp, err = Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path, Profile: "prod"})
	require.NoError(t, err)
	assert.Equal(t, 7, rp.Polling.MaxAttempts)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeTestConfig(t, `
[profile.default]
server = "https://file.example.com/api/galaxy/"
username = "file-user"
gateway = true
`)

	env := EnvOverrides{
		ConfigPath:   path,
		Server:       "https://env.example.com/api/galaxy/",
		SleepPolling: "1",
		SleepOnetime: "2",
		MaxAttempts:  "3",
	}

	rp, err := Resolve(env, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api/galaxy/", rp.Server)
	assert.Equal(t, "file-user", rp.Username)
	assert.Equal(t, PollingConfig{SleepSecondsPolling: 1, SleepSecondsOnetime: 2, MaxAttempts: 3}, rp.Polling)
	assert.Equal(t, 2*time.Second, rp.OnetimeDelay())

	cli := CLIOverrides{
		Server:   strPtr("https://cli.example.com/api/galaxy/"),
		Username: strPtr("cli-user"),
		Gateway:  boolPtr(false),
		LogLevel: strPtr("debug"),
	}

	rp, err = Resolve(env, cli)
	require.NoError(t, err)
	assert.Equal(t, "https://cli.example.com/api/galaxy/", rp.Server)
	assert.Equal(t, "cli-user", rp.Username)
	assert.False(t, rp.Gateway)
	assert.Equal(t, "debug", rp.Logging.LogLevel)
}

func TestResolve_BadEnvInteger(t *testing.T) {
	env := EnvOverrides{
		ConfigPath:   filepath.Join(t.TempDir(), "none.toml"),
		SleepPolling: "soon",
		MaxAttempts:  "many",
	}

	_, err := Resolve(env, CLIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvSleepPolling)
	assert.Contains(t, err.Error(), EnvPollingMaxAttempts)
}

func TestResolve_CLIPathBeatsEnv(t *testing.T) {
	envPath := writeTestConfig(t, "[profile.default]\nusername = \"env-file\"\n")
	cliPath := writeTestConfig(t, "[profile.default]\nusername = \"cli-file\"\n")

	rp, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "cli-file", rp.Username)
}

func TestResolve_InvalidServerOverride(t *testing.T) {
	_, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")},
		CLIOverrides{Server: strPtr("localhost:8002")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server")
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/galaxykit.toml")
	t.Setenv(EnvProfile, "stage")
	t.Setenv(EnvServer, "https://hub/api/galaxy/")
	t.Setenv(EnvSleepPolling, "4")
	t.Setenv(EnvSleepOnetime, "5")
	t.Setenv(EnvPollingMaxAttempts, "6")

	assert.Equal(t, EnvOverrides{
		ConfigPath:   "/etc/galaxykit.toml",
		Profile:      "stage",
		Server:       "https://hub/api/galaxy/",
		SleepPolling: "4",
		SleepOnetime: "5",
		MaxAttempts:  "6",
	}, ReadEnvOverrides())
}
