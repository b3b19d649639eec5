package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerAllowed(t *testing.T) {
	allow := "http://localhost:5001, https://hub.test.example.com"

	assert.True(t, ServerAllowed(allow, "http://localhost:5001/api/automation-hub/"))
	assert.True(t, ServerAllowed(allow, "https://HUB.test.example.com/api/galaxy/"))
	assert.False(t, ServerAllowed(allow, "https://console.redhat.com/api/automation-hub/"))
	assert.False(t, ServerAllowed(allow, "http://localhost:8002/api/galaxy/"))
	assert.False(t, ServerAllowed(allow, "not a url"))
}

func TestLoadDotEnv_ExistingWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GALAXYKIT_E2E_USERNAME=fromfile\nGALAXYKIT_E2E_PASSWORD=\"quoted\"\n"), 0o600))

	t.Setenv(EnvE2EUsername, "fromenv")
	t.Setenv(EnvE2EPassword, "")
	require.NoError(t, os.Unsetenv(EnvE2EPassword))

	LoadDotEnv(path)

	assert.Equal(t, "fromenv", os.Getenv(EnvE2EUsername))
	assert.Equal(t, "quoted", os.Getenv(EnvE2EPassword))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
}

func TestFindModuleRoot(t *testing.T) {
	root := FindModuleRoot("fallback")
	assert.FileExists(t, filepath.Join(root, "go.mod"))
}

func TestGetenv(t *testing.T) {
	t.Setenv(EnvE2EServer, "")
	assert.Equal(t, "def", Getenv(EnvE2EServer, "def"))

	t.Setenv(EnvE2EServer, "http://localhost:5001")
	assert.Equal(t, "http://localhost:5001", Getenv(EnvE2EServer, "def"))
}
