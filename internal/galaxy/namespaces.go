package galaxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Object permissions granted to a namespace owner group on servers
// without RBAC.
var namespaceOwnerPerms = []string{"change_namespace", "upload_to_namespace"}

// namespaceOwnerRole is the object role granted on RBAC servers.
const namespaceOwnerRole = "galaxy.collection_namespace_owner"

// NamespaceGroup is a group attached to a namespace.
type NamespaceGroup struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	ObjectPermissions []string `json:"object_permissions,omitempty"`
	ObjectRoles       []string `json:"object_roles,omitempty"`
}

// Namespace is a v3 namespace document.
type Namespace struct {
	ID          int              `json:"id,omitempty"`
	Name        string           `json:"name"`
	Company     string           `json:"company,omitempty"`
	Email       string           `json:"email,omitempty"`
	Description string           `json:"description,omitempty"`
	Groups      []NamespaceGroup `json:"groups"`
}

func namespacePath(name string) string {
	return "v3/namespaces/" + url.PathEscape(name) + "/"
}

// GetNamespace returns the named namespace, or ErrNotFound.
func (c *Client) GetNamespace(ctx context.Context, name string) (*Namespace, error) {
	var ns Namespace
	if err := c.Get(ctx, namespacePath(name), &ns); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("namespace", name)
		}

		return nil, err
	}

	return &ns, nil
}

// NamespaceID returns the numeric id of the named namespace.
func (c *Client) NamespaceID(ctx context.Context, name string) (int, error) {
	var page Page[Namespace]
	if err := c.Get(ctx, "v3/namespaces/"+query("name", name), &page); err != nil {
		return 0, err
	}

	if len(page.Data) == 0 {
		return 0, notFound("namespace", name)
	}

	return page.Data[0].ID, nil
}

// ListNamespaces returns every namespace.
func (c *Client) ListNamespaces(ctx context.Context) ([]Record, error) {
	var page Page[Record]
	if err := c.Get(ctx, "_ui/v1/namespaces/", &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// NamespaceCollections returns the published collections of a namespace.
func (c *Client) NamespaceCollections(ctx context.Context, name string) ([]Record, error) {
	var page Page[Record]
	if err := c.Get(ctx, "_ui/v1/repo/published/"+query("namespace", name), &page); err != nil {
		return nil, err
	}

	return page.Data, nil
}

// CreateNamespace creates the namespace owned by groupName. When the
// namespace exists the group is added to it instead. An empty groupName
// creates it without owners.
func (c *Client) CreateNamespace(ctx context.Context, name, groupName string) (*Namespace, error) {
	existing, err := c.GetNamespace(ctx, name)
	switch {
	case err == nil:
		if groupName == "" {
			return existing, nil
		}

		return c.AddNamespaceGroup(ctx, name, groupName)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	ns := Namespace{Name: name, Groups: []NamespaceGroup{}}
	if groupName != "" {
		g, err := c.ownerGroup(ctx, groupName)
		if err != nil {
			return nil, err
		}

		ns.Groups = append(ns.Groups, g)
	}

	var created Namespace
	if err := c.Post(ctx, "v3/namespaces/", ns, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateNamespace replaces the namespace document.
func (c *Client) UpdateNamespace(ctx context.Context, ns *Namespace) (*Namespace, error) {
	if ns.Groups == nil {
		ns.Groups = []NamespaceGroup{}
	}

	var out Namespace
	if err := c.Put(ctx, namespacePath(ns.Name), ns, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// AddNamespaceGroup grants groupName ownership of the namespace.
func (c *Client) AddNamespaceGroup(ctx context.Context, name, groupName string) (*Namespace, error) {
	ns, err := c.GetNamespace(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, g := range ns.Groups {
		if g.Name == groupName {
			return ns, nil
		}
	}

	g, err := c.ownerGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}

	ns.Groups = append(ns.Groups, g)

	return c.UpdateNamespace(ctx, ns)
}

// RemoveNamespaceGroup drops groupName from the namespace owners.
func (c *Client) RemoveNamespaceGroup(ctx context.Context, name, groupName string) (*Namespace, error) {
	ns, err := c.GetNamespace(ctx, name)
	if err != nil {
		return nil, err
	}

	kept := ns.Groups[:0]
	for _, g := range ns.Groups {
		if g.Name != groupName {
			kept = append(kept, g)
		}
	}

	if len(kept) == len(ns.Groups) {
		return nil, notFound("group on namespace "+name, groupName)
	}

	ns.Groups = kept

	return c.UpdateNamespace(ctx, ns)
}

// DeleteNamespace deletes the namespace.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	_, err := c.DeleteRaw(ctx, "_ui/v1/namespaces/"+url.PathEscape(name)+"/")
	return err
}

// ownerGroup builds the group entry for a namespace owner. RBAC servers
// take object roles, older ones object permissions.
func (c *Client) ownerGroup(ctx context.Context, groupName string) (NamespaceGroup, error) {
	id, err := c.GroupID(ctx, groupName)
	if err != nil {
		return NamespaceGroup{}, err
	}

	g := NamespaceGroup{ID: id, Name: groupName, ObjectPermissions: namespaceOwnerPerms}

	rbac, err := c.RBACEnabled(ctx)
	if err != nil {
		return NamespaceGroup{}, fmt.Errorf("galaxy: checking server version: %w", err)
	}

	if rbac {
		g.ObjectRoles = []string{namespaceOwnerRole}
	}

	return g, nil
}
