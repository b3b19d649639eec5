package galaxy

import (
	"context"
	"net/url"
)

// Readme is an execution environment readme document.
type Readme struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// eePath returns an execution-environments path under the prefix the
// server version uses.
func (c *Client) eePath(ctx context.Context, rest string) (string, error) {
	prefix, err := c.EEEndpointPrefix(ctx)
	if err != nil {
		return "", err
	}

	return prefix + "execution-environments/" + rest, nil
}

func containerPath(name string) string {
	return "repositories/" + url.PathEscape(name) + "/"
}

// ContainerReadme returns the readme of a container repository.
func (c *Client) ContainerReadme(ctx context.Context, container string) (*Readme, error) {
	path, err := c.eePath(ctx, containerPath(container)+"_content/readme/")
	if err != nil {
		return nil, err
	}

	var r Readme
	if err := c.Get(ctx, path, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// SetContainerReadme replaces the readme text of a container repository.
func (c *Client) SetContainerReadme(ctx context.Context, container, text string) (*Readme, error) {
	current, err := c.ContainerReadme(ctx, container)
	if err != nil {
		return nil, err
	}

	path, err := c.eePath(ctx, containerPath(container)+"_content/readme/")
	if err != nil {
		return nil, err
	}

	current.Text = text

	var out Readme
	if err := c.Put(ctx, path, current, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ListContainers returns every container repository.
func (c *Client) ListContainers(ctx context.Context) ([]Record, error) {
	path, err := c.eePath(ctx, "repositories/")
	if err != nil {
		return nil, err
	}

	var page Page[Record]
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// DeleteContainer deletes a container repository.
func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	path, err := c.eePath(ctx, containerPath(name))
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, path)

	return err
}

// CreateContainer creates a remote container mirroring upstream from the
// named registry.
func (c *Client) CreateContainer(ctx context.Context, name, upstream, registry string) (Record, error) {
	pk, err := c.RegistryPK(ctx, registry)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"name":          name,
		"upstream_name": upstream,
		"registry":      pk,
	}

	var out Record
	if err := c.Post(ctx, "_ui/v1/execution-environments/remotes/", body, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ListContainerImages returns the images of a container repository.
func (c *Client) ListContainerImages(ctx context.Context, container string) ([]Record, error) {
	path, err := c.eePath(ctx, containerPath(container)+"_content/images/")
	if err != nil {
		return nil, err
	}

	var page Page[Record]
	if err := c.Get(ctx, path, &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// DeleteContainerImage deletes one image, by digest or tag, from a
// container repository.
func (c *Client) DeleteContainerImage(ctx context.Context, container, image string) error {
	path, err := c.eePath(ctx, containerPath(container)+"_content/images/"+url.PathEscape(image)+"/")
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, path)

	return err
}
