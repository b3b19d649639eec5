package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// requireRBAC fails with ErrUnsupportedServer on servers without roles.
func requireRBAC(ctx context.Context, c *galaxy.Client, feature string) error {
	return c.RequireVersion(ctx, galaxy.RBACVersion, feature)
}

// requireLegacyPermissions fails on servers that replaced model
// permissions with roles.
func requireLegacyPermissions(ctx context.Context, c *galaxy.Client) error {
	rbac, err := c.RBACEnabled(ctx)
	if err != nil {
		return err
	}

	if rbac {
		return fmt.Errorf("%w: group permissions were replaced by roles; use \"group role\"",
			galaxy.ErrUnsupportedServer)
	}

	return nil
}

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "RBAC groups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			groups, err := c.ListGroups(cmd.Context())
			if err != nil {
				return err
			}

			return cc.printRecords(groups, "name")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a group unless it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			g, created, err := c.GetOrCreateGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !created {
				cc.Statusf("Group %s already existed (id %d)\n", g.Name, g.ID)
				return nil
			}

			cc.Statusf("Created group %s (id %d)\n", g.Name, g.ID)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteGroup(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Deleted group %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(newGroupPermissionCmd())
	cmd.AddCommand(newGroupRoleCmd())

	return cmd
}

func newGroupPermissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Group model permissions (galaxy_ng before 4.6)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <groupname>",
		Short: "List group permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireLegacyPermissions(cmd.Context(), c); err != nil {
				return err
			}

			perms, err := c.GroupPermissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printTyped(cc, perms, "permission")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <groupname> <perm>",
		Short: "Grant a permission to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireLegacyPermissions(cmd.Context(), c); err != nil {
				return err
			}

			if err := c.AddGroupPermission(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Granted %s to %s\n", args[1], args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <groupname> <perm>",
		Short: "Revoke a permission from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireLegacyPermissions(cmd.Context(), c); err != nil {
				return err
			}

			if err := c.RemoveGroupPermission(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Revoked %s from %s\n", args[1], args[0])

			return nil
		},
	})

	return cmd
}

func newGroupRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Group role assignments (galaxy_ng 4.6 and later)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <groupname>",
		Short: "List roles assigned to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "group role"); err != nil {
				return err
			}

			roles, err := c.GroupRoles(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printTyped(cc, roles, "role")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <groupname> <rolename>",
		Short: "Assign a role to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "group role"); err != nil {
				return err
			}

			if _, err := c.AddGroupRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Assigned %s to %s\n", args[1], args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <groupname> <rolename>",
		Short: "Remove a role from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "group role"); err != nil {
				return err
			}

			if err := c.RemoveGroupRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Removed %s from %s\n", args[1], args[0])

			return nil
		},
	})

	return cmd
}
