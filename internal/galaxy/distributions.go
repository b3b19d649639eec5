package galaxy

import "context"

const ansibleDistributions = "pulp/api/v3/distributions/ansible/ansible/"

// Distribution serves a repository under a base path.
type Distribution struct {
	PulpHref   string `json:"pulp_href,omitempty"`
	Name       string `json:"name"`
	BasePath   string `json:"base_path"`
	Repository string `json:"repository,omitempty"`
}

// DistributionHref returns the pulp href of the named distribution.
func (c *Client) DistributionHref(ctx context.Context, name string) (string, error) {
	var page PulpPage[Distribution]
	if err := c.Get(ctx, ansibleDistributions+query("name", name), &page); err != nil {
		return "", err
	}

	if len(page.Results) == 0 {
		return "", notFound("distribution", name)
	}

	return page.Results[0].PulpHref, nil
}

// DistributionPK returns the UUID of the named distribution.
func (c *Client) DistributionPK(ctx context.Context, name string) (string, error) {
	href, err := c.DistributionHref(ctx, name)
	if err != nil {
		return "", err
	}

	return PulpHrefToID(href), nil
}

// ListDistributions returns every ansible distribution.
func (c *Client) ListDistributions(ctx context.Context) ([]Distribution, error) {
	var page PulpPage[Distribution]
	if err := c.Get(ctx, ansibleDistributions, &page); err != nil {
		return nil, err
	}

	return page.Results, nil
}

// CreateDistribution distributes the repository of the same name at
// base path name.
func (c *Client) CreateDistribution(ctx context.Context, name string) (Record, error) {
	repo, err := c.RepositoryHref(ctx, name)
	if err != nil {
		return nil, err
	}

	body := Distribution{Name: name, BasePath: name, Repository: repo}

	var out Record
	if err := c.Post(ctx, ansibleDistributions, body, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// DeleteDistribution deletes the named distribution.
func (c *Client) DeleteDistribution(ctx context.Context, name string) error {
	pk, err := c.DistributionPK(ctx, name)
	if err != nil {
		return err
	}

	return c.deleteAsync(ctx, ansibleDistributions+pk+"/")
}
