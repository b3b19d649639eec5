package galaxy

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// Server releases that changed the API surface.
const (
	RBACVersion              = "4.6.0dev"
	EEEndpointsChangeVersion = "4.7.0dev"
)

// EE endpoint prefixes before and after EEEndpointsChangeVersion.
const (
	legacyEEPrefix = "_ui/v1/"
	pluginEEPrefix = "v3/plugin/"
)

// pep440Pre splits "4.6.0dev" or "4.7.0.dev1" into release and pre-release.
var pep440Pre = regexp.MustCompile(`^v?(\d+(?:\.\d+){0,2})[._-]?([A-Za-z][0-9A-Za-z.]*)?$`)

// ParseServerVersion parses a galaxy_ng version string. Python-style
// pre-release suffixes become semver pre-releases, so "4.6.0dev" sorts
// before "4.6.0".
func ParseServerVersion(raw string) (*semver.Version, error) {
	m := pep440Pre.FindStringSubmatch(raw)
	if m == nil {
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("galaxy: parsing server version %q: %w", raw, err)
		}

		return v, nil
	}

	normalized := m[1]
	if m[2] != "" {
		normalized += "-" + m[2]
	}

	v, err := semver.NewVersion(normalized)
	if err != nil {
		return nil, fmt.Errorf("galaxy: parsing server version %q: %w", raw, err)
	}

	return v, nil
}

// VersionAtLeast reports whether version >= minimum.
func VersionAtLeast(version, minimum string) (bool, error) {
	v, err := ParseServerVersion(version)
	if err != nil {
		return false, err
	}

	m, err := ParseServerVersion(minimum)
	if err != nil {
		return false, err
	}

	return !v.LessThan(m), nil
}

// ServerVersion returns galaxy_ng_version from the API root. The value is
// fetched once per client.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.version
	c.mu.Unlock()

	if cached != "" {
		return cached, nil
	}

	var root struct {
		Version string `json:"galaxy_ng_version"`
	}

	if err := c.Get(ctx, "", &root); err != nil {
		return "", err
	}

	if root.Version == "" {
		return "", fmt.Errorf("galaxy: API root has no galaxy_ng_version: %w", ErrResponseFormat)
	}

	c.mu.Lock()
	c.version = root.Version
	c.mu.Unlock()

	return root.Version, nil
}

// RBACEnabled reports whether the server has role based access control.
func (c *Client) RBACEnabled(ctx context.Context) (bool, error) {
	return c.serverAtLeast(ctx, RBACVersion)
}

// EEEndpointPrefix returns where execution environment endpoints live.
func (c *Client) EEEndpointPrefix(ctx context.Context) (string, error) {
	newer, err := c.serverAtLeast(ctx, EEEndpointsChangeVersion)
	if err != nil {
		return "", err
	}

	if newer {
		return pluginEEPrefix, nil
	}

	return legacyEEPrefix, nil
}

func (c *Client) serverAtLeast(ctx context.Context, minimum string) (bool, error) {
	v, err := c.ServerVersion(ctx)
	if err != nil {
		return false, err
	}

	return VersionAtLeast(v, minimum)
}

// RequireVersion returns ErrUnsupportedServer when the server is older than
// minimum.
func (c *Client) RequireVersion(ctx context.Context, minimum, feature string) error {
	ok, err := c.serverAtLeast(ctx, minimum)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s requires galaxy_ng %s or later", ErrUnsupportedServer, feature, minimum)
	}

	return nil
}

// Settings returns the server's UI settings document.
func (c *Client) Settings(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.Get(ctx, "_ui/v1/settings/", &out); err != nil {
		return nil, err
	}

	return out, nil
}

// FeatureFlags returns the server's feature flag document.
func (c *Client) FeatureFlags(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.Get(ctx, "_ui/v1/feature-flags/", &out); err != nil {
		return nil, err
	}

	return out, nil
}
