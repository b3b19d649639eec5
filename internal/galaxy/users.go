package galaxy

import (
	"context"
	"fmt"
)

// GroupRef is a group as embedded in user documents.
type GroupRef struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	PulpHref string `json:"pulp_href,omitempty"`
}

// User is a _ui/v1 user document.
type User struct {
	ID          int        `json:"id,omitempty"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Password    string     `json:"password,omitempty"`
	Groups      []GroupRef `json:"groups"`
	IsSuperuser bool       `json:"is_superuser"`
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]Record, error) {
	var page Page[Record]
	if err := c.Get(ctx, "_ui/v1/users/", &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// GetUser looks a user up by username.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	var page Page[User]
	if err := c.Get(ctx, "_ui/v1/users/"+query("username", username), &page); err != nil {
		return nil, err
	}

	if len(page.Data) == 0 {
		return nil, notFound("user", username)
	}

	return &page.Data[0], nil
}

// CreateUser creates u. Groups may be empty.
func (c *Client) CreateUser(ctx context.Context, u User) (*User, error) {
	if u.Groups == nil {
		u.Groups = []GroupRef{}
	}

	var created User
	if err := c.Post(ctx, "_ui/v1/users/", u, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

// GetOrCreateUser returns the existing user with u.Username, or creates it.
// created reports which happened.
func (c *Client) GetOrCreateUser(ctx context.Context, u User) (user *User, created bool, err error) {
	var page Page[User]
	if err := c.Get(ctx, "_ui/v1/users/"+query("username", u.Username), &page); err != nil {
		return nil, false, err
	}

	if page.Meta.Count > 0 && len(page.Data) > 0 {
		return &page.Data[0], false, nil
	}

	user, err = c.CreateUser(ctx, u)
	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}

// UpdateUser replaces the user document.
func (c *Client) UpdateUser(ctx context.Context, u *User) (*User, error) {
	var updated User
	if err := c.Put(ctx, fmt.Sprintf("_ui/v1/users/%d/", u.ID), u, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteUser deletes the user with username.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	u, err := c.GetUser(ctx, username)
	if err != nil {
		return err
	}

	_, err = c.DeleteRaw(ctx, fmt.Sprintf("_ui/v1/users/%d/", u.ID))

	return err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var me User
	if err := c.Get(ctx, "_ui/v1/me/", &me); err != nil {
		return nil, err
	}

	return &me, nil
}

// UpdateMe replaces the authenticated user's document.
func (c *Client) UpdateMe(ctx context.Context, u *User) (*User, error) {
	var me User
	if err := c.Put(ctx, "_ui/v1/me/", u, &me); err != nil {
		return nil, err
	}

	return &me, nil
}

// AddUserToGroup adds the group to the user's memberships.
func (c *Client) AddUserToGroup(ctx context.Context, username, groupName string) (*User, error) {
	u, err := c.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	id, err := c.GroupID(ctx, groupName)
	if err != nil {
		return nil, err
	}

	for _, g := range u.Groups {
		if g.ID == id {
			return u, nil
		}
	}

	u.Groups = append(u.Groups, GroupRef{
		ID:       id,
		Name:     groupName,
		PulpHref: fmt.Sprintf("/pulp/api/v3/groups/%d", id),
	})

	return c.UpdateUser(ctx, u)
}

// RemoveUserFromGroup drops the group from the user's memberships.
func (c *Client) RemoveUserFromGroup(ctx context.Context, username, groupName string) (*User, error) {
	u, err := c.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	id, err := c.GroupID(ctx, groupName)
	if err != nil {
		return nil, err
	}

	kept := u.Groups[:0]
	for _, g := range u.Groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}

	u.Groups = kept

	return c.UpdateUser(ctx, u)
}
