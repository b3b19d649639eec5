package galaxy

import (
	"context"
	"fmt"
)

const ansibleRepositories = "pulp/api/v3/repositories/ansible/ansible/"

// Repository is a pulp ansible repository.
type Repository struct {
	PulpHref       string            `json:"pulp_href,omitempty"`
	Name           string            `json:"name"`
	Description    *string           `json:"description,omitempty"`
	Private        bool              `json:"private"`
	PulpLabels     map[string]string `json:"pulp_labels,omitempty"`
	Remote         string            `json:"remote,omitempty"`
	LatestVersion  string            `json:"latest_version_href,omitempty"`
	RetainVersions *int              `json:"retain_repo_versions,omitempty"`
}

// RepositoryOptions are the optional attributes of CreateRepository.
type RepositoryOptions struct {
	Pipeline       string // pulp_labels.pipeline, e.g. "approved" or "staging"
	Remote         string // remote name
	Description    string
	Private        bool
	HideFromSearch bool
}

// RepositoryHref returns the pulp href of the named repository.
func (c *Client) RepositoryHref(ctx context.Context, name string) (string, error) {
	var page PulpPage[Repository]
	if err := c.Get(ctx, ansibleRepositories+query("name", name), &page); err != nil {
		return "", err
	}

	if len(page.Results) == 0 {
		return "", notFound("repository", name)
	}

	return page.Results[0].PulpHref, nil
}

// RepositoryPK returns the UUID of the named repository.
func (c *Client) RepositoryPK(ctx context.Context, name string) (string, error) {
	href, err := c.RepositoryHref(ctx, name)
	if err != nil {
		return "", err
	}

	return PulpHrefToID(href), nil
}

// ListRepositories returns every ansible repository.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var page PulpPage[Repository]
	if err := c.Get(ctx, ansibleRepositories, &page); err != nil {
		return nil, err
	}

	return page.Results, nil
}

// CreateRepository creates an ansible repository.
func (c *Client) CreateRepository(ctx context.Context, name string, opts RepositoryOptions) (*Repository, error) {
	repo := Repository{Name: name, Private: opts.Private}

	if opts.Description != "" {
		repo.Description = &opts.Description
	}

	if opts.HideFromSearch {
		repo.PulpLabels = map[string]string{"hide_from_search": ""}
	}

	if opts.Pipeline != "" {
		repo.PulpLabels = map[string]string{"pipeline": opts.Pipeline}
	}

	if opts.Remote != "" {
		href, err := c.RemoteHref(ctx, opts.Remote)
		if err != nil {
			return nil, err
		}

		repo.Remote = href
	}

	var out Repository
	if err := c.Post(ctx, ansibleRepositories, repo, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteRepository deletes the named repository and waits for the task.
func (c *Client) DeleteRepository(ctx context.Context, name string) error {
	pk, err := c.RepositoryPK(ctx, name)
	if err != nil {
		return err
	}

	return c.deleteAsync(ctx, ansibleRepositories+pk+"/")
}

// PatchRepository applies a partial update to the repository with id.
func (c *Client) PatchRepository(ctx context.Context, id string, fields map[string]any) (Record, error) {
	var out Record
	if err := c.Patch(ctx, ansibleRepositories+id+"/", fields, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// PutRepository replaces the repository with id.
func (c *Client) PutRepository(ctx context.Context, id string, repo Repository) (Record, error) {
	var out Record
	if err := c.Put(ctx, ansibleRepositories+id+"/", repo, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// CopyContent copies collection versions (by pulp href) from the named
// repository into each destination and waits for the task.
func (c *Client) CopyContent(ctx context.Context, source string, versions, destinations []string) error {
	return c.transferContent(ctx, "copy_collection_version", source, versions, destinations)
}

// MoveContent is CopyContent followed by removal from source, done by the
// server in one task.
func (c *Client) MoveContent(ctx context.Context, source string, versions, destinations []string) error {
	return c.transferContent(ctx, "move_collection_version", source, versions, destinations)
}

func (c *Client) transferContent(ctx context.Context, action, source string, versions, destinations []string) error {
	href, err := c.RepositoryHref(ctx, source)
	if err != nil {
		return err
	}

	dests := make([]string, 0, len(destinations))
	for _, d := range destinations {
		dh, err := c.RepositoryHref(ctx, d)
		if err != nil {
			return err
		}

		dests = append(dests, dh)
	}

	body := map[string][]string{
		"collection_versions":      versions,
		"destination_repositories": dests,
	}

	resp, err := c.PostRaw(ctx, href+action+"/", body)
	if err != nil {
		return err
	}

	h, err := HandleFromResponse(resp)
	if err != nil {
		return fmt.Errorf("galaxy: %s from %s: %w", action, source, err)
	}

	_, err = c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})

	return err
}

// RepositoryCollections returns the collection versions in the named
// repository, via the search endpoint.
func (c *Client) RepositoryCollections(ctx context.Context, name string) ([]Record, error) {
	page, err := c.SearchCollections(ctx, map[string][]string{"repository_name": {name}})
	if err != nil {
		return nil, err
	}

	return page.Data, nil
}
