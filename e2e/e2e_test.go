//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/galaxykit-go/testutil"
)

var (
	binaryPath string
	server     string
	username   string
	password   string
)

func TestMain(m *testing.M) {
	root := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))

	server = testutil.ValidateAllowlist(testutil.EnvE2EServer)
	username = testutil.Getenv(testutil.EnvE2EUsername, "admin")
	password = testutil.Getenv(testutil.EnvE2EPassword, "admin")

	// Build binary to temp dir.
	tmpDir, err := os.MkdirTemp("", "galaxykit-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "galaxykit")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	// Keep the suite away from a developer's real config. Fast polling
	// keeps collection imports from dominating the run.
	os.Setenv("GALAXYKIT_CONFIG", filepath.Join(tmpDir, "config.toml"))
	os.Unsetenv("GALAXYKIT_PROFILE")
	os.Unsetenv("GALAXYKIT_SERVER")
	os.Setenv("GALAXYKIT_SLEEP_SECONDS_POLLING", "1")

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// execCLI runs the binary and returns stdout, stderr and the exit code.
func execCLI(args ...string) (string, string, int) {
	fullArgs := append([]string{"-s", server, "-u", username, "-p", password}, args...)
	cmd := exec.Command(binaryPath, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), stderr.String(), 0
	case errors.As(err, &exitErr):
		return stdout.String(), stderr.String(), exitErr.ExitCode()
	default:
		return stdout.String(), stderr.String(), -1
	}
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	stdout, stderr, code := execCLI(args...)
	if code != 0 {
		t.Fatalf("CLI command %v exited %d\nstdout: %s\nstderr: %s", args, code, stdout, stderr)
	}

	return stdout, stderr
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

func TestE2E_GreetHello(t *testing.T) {
	stdout, _ := runCLI(t, "greet", "hello")
	assert.Contains(t, stdout, "Hello from galaxy_ng")
}

func TestE2E_UserRoundTrip(t *testing.T) {
	user := uniqueName("e2euser")
	group := uniqueName("e2egroup")

	t.Cleanup(func() {
		// Best-effort cleanup.
		_, _, _ = execCLI("-i", "user", "delete", user)
		_, _, _ = execCLI("-i", "group", "delete", group)
	})

	t.Run("create", func(t *testing.T) {
		_, stderr := runCLI(t, "user", "create", user, "Secret-"+user, "--email", user+"@example.com")
		assert.Contains(t, stderr, "Created user")
	})

	t.Run("create_again_is_duplicate", func(t *testing.T) {
		_, _, code := execCLI("user", "create", user, "Secret-"+user)
		assert.Equal(t, 4, code)

		_, _, code = execCLI("-i", "user", "create", user, "Secret-"+user)
		assert.Equal(t, 0, code)
	})

	t.Run("list", func(t *testing.T) {
		stdout, _ := runCLI(t, "user", "list")
		assert.Contains(t, stdout, user+" ")
	})

	t.Run("group_membership", func(t *testing.T) {
		runCLI(t, "group", "create", group)
		runCLI(t, "user", "group", "add", user, group)

		stdout, _ := runCLI(t, "--json", "user", "list")

		var users []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &users))

		var found bool
		for _, u := range users {
			if u["username"] == user {
				found = strings.Contains(fmt.Sprint(u["groups"]), group)
			}
		}

		assert.True(t, found, "user %s should be in group %s", user, group)

		runCLI(t, "user", "group", "remove", user, group)
	})

	t.Run("delete", func(t *testing.T) {
		runCLI(t, "user", "delete", user)

		_, _, code := execCLI("user", "delete", user)
		assert.Equal(t, 2, code)
	})
}

func TestE2E_CollectionPipeline(t *testing.T) {
	namespace := uniqueName("e2ens")
	name := uniqueName("e2ecol")

	t.Cleanup(func() {
		_, _, _ = execCLI("-i", "collection", "delete", namespace, name)
		_, _, _ = execCLI("-i", "namespace", "delete", namespace)
	})

	stdout, _ := runCLI(t, "collection", "upload", namespace, name, "1.0.0")

	var uploaded map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &uploaded))
	assert.Equal(t, namespace, uploaded["namespace"])
	assert.Equal(t, name, uploaded["name"])
	assert.Len(t, uploaded["sha256"], 64)

	runCLI(t, "collection", "move", namespace, name, "1.0.0")

	info, _ := runCLI(t, "collection", "info", namespace, name, "1.0.0")
	assert.Contains(t, info, `"version":"1.0.0"`)
}

func TestE2E_TaskList(t *testing.T) {
	stdout, _ := runCLI(t, "--json", "task", "list")

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &tasks))
}

func TestE2E_UnknownURL(t *testing.T) {
	_, stderr, code := execCLI("url", "get", "_ui/v1/does-not-exist/")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Error:")
}
