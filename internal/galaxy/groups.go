package galaxy

import (
	"context"
	"errors"
	"fmt"
)

// Group is a _ui/v1 group document.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GroupRole is a role assignment on a group.
type GroupRole struct {
	PulpHref      string  `json:"pulp_href"`
	Role          string  `json:"role"`
	ContentObject *string `json:"content_object"`
}

// GroupPermission is a model permission on servers without RBAC roles.
type GroupPermission struct {
	ID         int    `json:"id"`
	Permission string `json:"permission"`
}

// ListGroups returns every group.
func (c *Client) ListGroups(ctx context.Context) ([]Record, error) {
	var page Page[Record]
	if err := c.Get(ctx, "_ui/v1/groups/", &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// GetGroup looks a group up by name.
func (c *Client) GetGroup(ctx context.Context, name string) (*Group, error) {
	var page Page[Group]
	if err := c.Get(ctx, "_ui/v1/groups/"+query("name", name), &page); err != nil {
		return nil, err
	}

	if len(page.Data) == 0 {
		return nil, notFound("group", name)
	}

	return &page.Data[0], nil
}

// GroupID returns the numeric id of the named group.
func (c *Client) GroupID(ctx context.Context, name string) (int, error) {
	g, err := c.GetGroup(ctx, name)
	if err != nil {
		return 0, err
	}

	return g.ID, nil
}

// CreateGroup creates a group.
func (c *Client) CreateGroup(ctx context.Context, name string) (*Group, error) {
	var g Group
	if err := c.Post(ctx, "_ui/v1/groups/", map[string]string{"name": name}, &g); err != nil {
		return nil, err
	}

	return &g, nil
}

// GetOrCreateGroup returns the named group, creating it when missing. The
// boolean reports whether it was created.
func (c *Client) GetOrCreateGroup(ctx context.Context, name string) (*Group, bool, error) {
	g, err := c.GetGroup(ctx, name)
	if err == nil {
		return g, false, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	g, err = c.CreateGroup(ctx, name)
	if err != nil {
		return nil, false, err
	}

	return g, true, nil
}

// DeleteGroup deletes the named group.
func (c *Client) DeleteGroup(ctx context.Context, name string) error {
	id, err := c.GroupID(ctx, name)
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, fmt.Sprintf("_ui/v1/groups/%d/", id))

	return err
}

// GroupRoles lists the global role assignments of a group.
func (c *Client) GroupRoles(ctx context.Context, name string) ([]GroupRole, error) {
	id, err := c.GroupID(ctx, name)
	if err != nil {
		return nil, err
	}

	var page PulpPage[GroupRole]
	if err := c.Get(ctx, fmt.Sprintf("pulp/api/v3/groups/%d/roles/?content_object=null", id), &page); err != nil {
		return nil, err
	}

	return page.Results, nil
}

// AddGroupRole assigns a "galaxy.*" role to the group globally.
func (c *Client) AddGroupRole(ctx context.Context, name, role string) (*GroupRole, error) {
	id, err := c.GroupID(ctx, name)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"content_object": nil, "role": role}

	var out GroupRole
	if err := c.Post(ctx, fmt.Sprintf("pulp/api/v3/groups/%d/roles/", id), body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// RemoveGroupRole removes a global role assignment from the group.
func (c *Client) RemoveGroupRole(ctx context.Context, name, role string) error {
	id, err := c.GroupID(ctx, name)
	if err != nil {
		return err
	}

	var page PulpPage[GroupRole]

	path := fmt.Sprintf("pulp/api/v3/groups/%d/roles/?content_object=null&role=%s", id, role)
	if err := c.Get(ctx, path, &page); err != nil {
		return err
	}

	if len(page.Results) == 0 {
		return notFound("role in group "+name, role)
	}

	roleID := PulpHrefToID(page.Results[0].PulpHref)
	_, err = c.DeleteRaw(ctx, fmt.Sprintf("pulp/api/v3/groups/%d/roles/%s/", id, roleID))

	return err
}

// GroupPermissions lists model permissions on servers without RBAC.
func (c *Client) GroupPermissions(ctx context.Context, name string) ([]GroupPermission, error) {
	id, err := c.GroupID(ctx, name)
	if err != nil {
		return nil, err
	}

	var page Page[GroupPermission]
	if err := c.Get(ctx, fmt.Sprintf("_ui/v1/groups/%d/model-permissions/", id), &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// AddGroupPermission grants a model permission on servers without RBAC.
// Granting a permission the group already holds is a no-op.
func (c *Client) AddGroupPermission(ctx context.Context, name, perm string) error {
	perms, err := c.GroupPermissions(ctx, name)
	if err != nil {
		return err
	}

	for _, p := range perms {
		if p.Permission == perm {
			return nil
		}
	}

	id, err := c.GroupID(ctx, name)
	if err != nil {
		return err
	}

	return c.Post(ctx, fmt.Sprintf("_ui/v1/groups/%d/model-permissions/", id),
		map[string]string{"permission": perm}, nil)
}

// RemoveGroupPermission revokes a model permission on servers without RBAC.
func (c *Client) RemoveGroupPermission(ctx context.Context, name, perm string) error {
	perms, err := c.GroupPermissions(ctx, name)
	if err != nil {
		return err
	}

	id, err := c.GroupID(ctx, name)
	if err != nil {
		return err
	}

	for _, p := range perms {
		if p.Permission == perm {
			_, err := c.DeleteRaw(ctx, fmt.Sprintf("_ui/v1/groups/%d/model-permissions/%d/", id, p.ID))
			return err
		}
	}

	return notFound("permission on group "+name, perm)
}
