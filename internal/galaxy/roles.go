package galaxy

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// rolePrefix scopes listings to galaxy roles; pulp ships many more.
const rolePrefix = "galaxy."

// Role is a pulp RBAC role.
type Role struct {
	PulpHref    string   `json:"pulp_href,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	Locked      bool     `json:"locked,omitempty"`
}

// ListRoles returns every galaxy.* role.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var page PulpPage[Role]
	if err := c.Get(ctx, "pulp/api/v3/roles/"+query("name__startswith", rolePrefix), &page); err != nil {
		return nil, err
	}

	return page.Results, nil
}

// GetRole looks a role up by exact name.
func (c *Client) GetRole(ctx context.Context, name string) (*Role, error) {
	var page PulpPage[Role]
	if err := c.Get(ctx, "pulp/api/v3/roles/"+query("name", name), &page); err != nil {
		return nil, err
	}

	if len(page.Results) == 0 {
		return nil, notFound("role", name)
	}

	return &page.Results[0], nil
}

// RoleID returns the UUID of the named role.
func (c *Client) RoleID(ctx context.Context, name string) (string, error) {
	r, err := c.GetRole(ctx, name)
	if err != nil {
		return "", err
	}

	return PulpHrefToID(r.PulpHref), nil
}

// CreateRole creates a role. Names outside the galaxy. namespace are
// rejected by the server.
func (c *Client) CreateRole(ctx context.Context, name, description string, permissions []string) (*Role, error) {
	if permissions == nil {
		permissions = []string{}
	}

	body := Role{Name: name, Description: description, Permissions: permissions}

	resp, err := c.PostRaw(ctx, "pulp/api/v3/roles/", body)
	if err != nil {
		return nil, err
	}

	var created Role
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}

	return &created, nil
}

// DeleteRole deletes the named role.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	id, err := c.RoleID(ctx, name)
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, fmt.Sprintf("pulp/api/v3/roles/%s/", id))

	return err
}

// PatchRole applies a partial update to the named role.
func (c *Client) PatchRole(ctx context.Context, name string, fields map[string]any) (*Role, error) {
	r, err := c.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}

	var out Role
	if err := c.Patch(ctx, r.PulpHref, fields, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// PutRole replaces the named role with next.
func (c *Client) PutRole(ctx context.Context, name string, next Role) (*Role, error) {
	r, err := c.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}

	if next.Permissions == nil {
		next.Permissions = []string{}
	}

	var out Role
	if err := c.Put(ctx, r.PulpHref, next, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// RolePermissions returns the permissions of the named role.
func (c *Client) RolePermissions(ctx context.Context, name string) ([]string, error) {
	r, err := c.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}

	return r.Permissions, nil
}

// SetRolePermissions adds add and then removes remove from the role's
// permission set. The result is sorted.
func (c *Client) SetRolePermissions(ctx context.Context, name string, add, remove []string) (*Role, error) {
	r, err := c.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(r.Permissions)+len(add))
	for _, p := range r.Permissions {
		set[p] = struct{}{}
	}

	for _, p := range add {
		set[p] = struct{}{}
	}

	for _, p := range remove {
		delete(set, p)
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}

	slices.Sort(perms)

	var out Role
	if err := c.Patch(ctx, r.PulpHref, map[string]any{"permissions": perms}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// IsGalaxyRole reports whether name is in the galaxy. role namespace.
func IsGalaxyRole(name string) bool {
	return strings.HasPrefix(name, rolePrefix)
}
