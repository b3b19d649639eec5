package galaxy

import (
	"context"
)

const (
	communitySyncConfig = "content/community/v3/sync/config/"
	collectionRemotes   = "pulp/api/v3/remotes/ansible/collection/"
)

// CommunityRemote is the sync configuration of the community repository.
type CommunityRemote struct {
	URL           string `json:"url"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	TLSValidation bool   `json:"tls_validation"`
	SignedOnly    bool   `json:"signed_only"`
}

// ConfigureCommunityRemote replaces the community sync configuration.
func (c *Client) ConfigureCommunityRemote(ctx context.Context, cfg CommunityRemote) (Record, error) {
	var out Record
	if err := c.Put(ctx, communitySyncConfig, cfg, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// CommunityRemoteConfig returns the community sync configuration.
func (c *Client) CommunityRemoteConfig(ctx context.Context) (Record, error) {
	var out Record
	if err := c.Get(ctx, communitySyncConfig, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Remote is a pulp collection remote.
type Remote struct {
	PulpHref     string `json:"pulp_href,omitempty"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Requirements string `json:"requirements_file,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	TLSValidate  *bool  `json:"tls_validation,omitempty"`
}

// ListRemotes returns every collection remote.
func (c *Client) ListRemotes(ctx context.Context) ([]Remote, error) {
	var page PulpPage[Remote]
	if err := c.Get(ctx, collectionRemotes, &page); err != nil {
		return nil, err
	}

	return page.Results, nil
}

// RemoteHref returns the pulp href of the named remote.
func (c *Client) RemoteHref(ctx context.Context, name string) (string, error) {
	var page PulpPage[Remote]
	if err := c.Get(ctx, collectionRemotes+query("name", name), &page); err != nil {
		return "", err
	}

	if len(page.Results) == 0 {
		return "", notFound("remote", name)
	}

	return page.Results[0].PulpHref, nil
}

// CreateRemote creates a collection remote.
func (c *Client) CreateRemote(ctx context.Context, r Remote) (*Remote, error) {
	var out Remote
	if err := c.Post(ctx, collectionRemotes, r, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteRemote deletes the named remote and waits for the deletion task.
func (c *Client) DeleteRemote(ctx context.Context, name string) error {
	href, err := c.RemoteHref(ctx, name)
	if err != nil {
		return err
	}

	return c.deleteAsync(ctx, href)
}

// deleteAsync deletes a pulp object. Pulp deletes answer 202 with a task,
// which is waited for; an empty answer is taken as done.
func (c *Client) deleteAsync(ctx context.Context, path string) error {
	resp, err := c.DeleteRaw(ctx, path)
	if err != nil {
		return err
	}

	if !resp.JSON().Get("task").Exists() {
		return nil
	}

	h, err := HandleFromResponse(resp)
	if err != nil {
		return err
	}

	_, err = c.WaitForTask(ctx, h, WaitOptions{RaiseOnError: true})

	return err
}
