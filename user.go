package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// session returns the CLIContext and its authenticated client.
func session(cmd *cobra.Command) (*CLIContext, *galaxy.Client, error) {
	cc := mustCLIContext(cmd.Context())

	c, err := cc.Client(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	return cc, c, nil
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "RBAC users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  runUserList,
	})
	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserDelete,
	})
	cmd.AddCommand(newUserGroupCmd())

	return cmd
}

func runUserList(cmd *cobra.Command, _ []string) error {
	cc, c, err := session(cmd)
	if err != nil {
		return err
	}

	users, err := c.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	return cc.printRecords(users, "username")
}

func newUserCreateCmd() *cobra.Command {
	var u galaxy.User

	cmd := &cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create a user unless it exists",
		Long: `Create a user unless it exists.

An existing username is a duplicate and exits 4. galaxykit for Python
exited 2 here; scripts that relied on that should pass --ignore, which
turns the duplicate into success.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Username, u.Password = args[0], args[1]
			return runUserCreate(cmd, u)
		},
	}

	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().StringVar(&u.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&u.LastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&u.IsSuperuser, "is-superuser", false, "grant superuser")

	return cmd
}

func runUserCreate(cmd *cobra.Command, u galaxy.User) error {
	cc, c, err := session(cmd)
	if err != nil {
		return err
	}

	_, created, err := c.GetOrCreateUser(cmd.Context(), u)
	if err != nil {
		return err
	}

	if !created {
		if cc.Flags.Ignore {
			cc.Statusf("User %s already existed\n", u.Username)
			return nil
		}

		return fmt.Errorf("user %s: %w", u.Username, galaxy.ErrDuplicate)
	}

	cc.Statusf("Created user %s\n", u.Username)

	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	cc, c, err := session(cmd)
	if err != nil {
		return err
	}

	if err := c.DeleteUser(cmd.Context(), args[0]); err != nil {
		return err
	}

	cc.Statusf("Deleted user %s\n", args[0])

	return nil
}

func newUserGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "User group membership",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <username> <groupname>",
		Short: "Add user to group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.AddUserToGroup(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Added %s to %s\n", args[0], args[1])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <username> <groupname>",
		Short: "Remove user from group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.RemoveUserFromGroup(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Removed %s from %s\n", args[0], args[1])

			return nil
		},
	})

	return cmd
}
