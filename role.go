package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "RBAC roles (galaxy_ng 4.6 and later)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List galaxy roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "role"); err != nil {
				return err
			}

			roles, err := c.ListRoles(cmd.Context())
			if err != nil {
				return err
			}

			return printTyped(cc, roles, "name")
		},
	})
	cmd.AddCommand(newRoleCreateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "role"); err != nil {
				return err
			}

			if err := c.DeleteRole(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Deleted role %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(newRolePermCmd())

	return cmd
}

// splitPermissions splits a comma-separated permission list, dropping
// empty entries.
func splitPermissions(raw string) []string {
	perms := []string{}

	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}

	return perms
}

func newRoleCreateCmd() *cobra.Command {
	var permissions string

	cmd := &cobra.Command{
		Use:   "create <name> <description>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "role"); err != nil {
				return err
			}

			r, err := c.CreateRole(cmd.Context(), args[0], args[1], splitPermissions(permissions))
			if err != nil {
				return err
			}

			cc.Statusf("Created role %s with %d permissions\n", r.Name, len(r.Permissions))

			return nil
		},
	}

	// -p is taken by --password on the root command.
	cmd.Flags().StringVar(&permissions, "permissions", "", "comma-separated list of permissions")

	return cmd
}

func newRolePermCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Role permissions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <rolename>",
		Short: "List role permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := requireRBAC(cmd.Context(), c, "role perm"); err != nil {
				return err
			}

			perms, err := c.RolePermissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(cc.Out, perms)
			}

			for _, p := range perms {
				fmt.Fprintln(cc.Out, p)
			}

			return nil
		},
	})

	change := func(use, short string, adding bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cc, c, err := session(cmd)
				if err != nil {
					return err
				}

				if err := requireRBAC(cmd.Context(), c, "role perm"); err != nil {
					return err
				}

				var add, remove []string
				if adding {
					add = []string{args[1]}
				} else {
					remove = []string{args[1]}
				}

				r, err := c.SetRolePermissions(cmd.Context(), args[0], add, remove)
				if err != nil {
					return err
				}

				cc.Statusf("Role %s now has %d permissions\n", r.Name, len(r.Permissions))

				return nil
			},
		}
	}

	cmd.AddCommand(change("add <rolename> <perm>", "Add a permission to a role", true))
	cmd.AddCommand(change("remove <rolename> <perm>", "Remove a permission from a role", false))

	return cmd
}
