package galaxy

import (
	"context"
	"net/url"
)

const registriesPath = "_ui/v1/execution-environments/registries/"

// RegistryPK returns the key of the named remote registry. Servers from
// EEEndpointsChangeVersion on report it as id, older ones as pk.
func (c *Client) RegistryPK(ctx context.Context, name string) (string, error) {
	resp, err := c.Do(ctx, &Request{Path: registriesPath + query("name", name)})
	if err != nil {
		return "", err
	}

	first := resp.JSON().Get("data.0")
	if !first.Exists() {
		return "", notFound("registry", name)
	}

	newer, err := c.serverAtLeast(ctx, EEEndpointsChangeVersion)
	if err != nil {
		return "", err
	}

	if newer {
		return first.Get("id").String(), nil
	}

	return first.Get("pk").String(), nil
}

// ListRegistries returns every remote registry.
func (c *Client) ListRegistries(ctx context.Context) ([]Record, error) {
	var page Page[Record]
	if err := c.Get(ctx, registriesPath, &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// CreateRegistry registers a remote container registry.
func (c *Client) CreateRegistry(ctx context.Context, name, registryURL string) (Record, error) {
	var out Record
	if err := c.Post(ctx, registriesPath, map[string]string{"name": name, "url": registryURL}, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// DeleteRegistry deletes the named remote registry.
func (c *Client) DeleteRegistry(ctx context.Context, name string) error {
	pk, err := c.RegistryPK(ctx, name)
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, registriesPath+url.PathEscape(pk)+"/")

	return err
}
