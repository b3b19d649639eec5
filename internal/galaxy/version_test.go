package galaxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"4.6.0", "4.6.0"},
		{"4.6.0dev", "4.6.0-dev"},
		{"4.7.0.dev1", "4.7.0-dev1"},
		{"4.10", "4.10.0"},
		{"v4.9.1", "4.9.1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseServerVersion(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}

	_, err := ParseServerVersion("not-a-version")
	assert.Error(t, err)
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, minimum string
		want             bool
	}{
		{"4.6.0", RBACVersion, true},
		{"4.6.0dev", RBACVersion, true},
		{"4.5.2", RBACVersion, false},
		{"4.7.0", EEEndpointsChangeVersion, true},
		{"4.6.3", EEEndpointsChangeVersion, false},
		{"4.10.0", "4.9.0", true},
	}

	for _, tt := range tests {
		got, err := VersionAtLeast(tt.version, tt.minimum)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s >= %s", tt.version, tt.minimum)
	}
}

func versionServer(t *testing.T, version string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiRoot {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"available_versions":{"v3":"v3/"},"galaxy_ng_version":"` + version + `"}`))

			return
		}

		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func TestServerVersion_Cached(t *testing.T) {
	srv, calls := versionServer(t, "4.8.0")

	c := newTestClient(t, srv.URL)

	for range 3 {
		v, err := c.ServerVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "4.8.0", v)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestEEEndpointPrefix(t *testing.T) {
	srv, _ := versionServer(t, "4.6.0")
	c := newTestClient(t, srv.URL)

	prefix, err := c.EEEndpointPrefix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, legacyEEPrefix, prefix)

	srv, _ = versionServer(t, "4.7.1")
	c = newTestClient(t, srv.URL)

	prefix, err = c.EEEndpointPrefix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pluginEEPrefix, prefix)
}

func TestRequireVersion(t *testing.T) {
	srv, _ := versionServer(t, "4.5.0")
	c := newTestClient(t, srv.URL)

	err := c.RequireVersion(context.Background(), RBACVersion, "roles")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedServer)
	assert.Contains(t, err.Error(), "roles")

	rbac, err := c.RBACEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, rbac)
}

func TestServerVersion_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ServerVersion(context.Background())
	assert.ErrorIs(t, err, ErrResponseFormat)
}
