package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

func newNamespaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespace",
		Short: "Collection namespaces",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			ns, err := c.GetNamespace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return cc.printDocument(ns)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.ListNamespaces(cmd.Context())
			if err != nil {
				return err
			}

			return cc.printDocument(list)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list-collections <name>",
		Short: "List the collections of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.NamespaceCollections(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return cc.printDocument(list)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> [group]",
		Short: "Create a namespace, optionally owned by a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			group := ""
			if len(args) == 2 {
				group = args[1]
			}

			ns, err := c.CreateNamespace(cmd.Context(), args[0], group)
			if err != nil {
				return err
			}

			cc.Statusf("Namespace %s ready\n", ns.Name)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteNamespace(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Deleted namespace %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "groups <name>",
		Short: "List the owner groups of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			ns, err := c.GetNamespace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printTyped(cc, ns.Groups, "name")
		},
	})
	cmd.AddCommand(namespaceGroupCmd("addgroup <name> <group>", "Add an owner group", (*galaxy.Client).AddNamespaceGroup))
	cmd.AddCommand(namespaceGroupCmd("removegroup <name> <group>", "Remove an owner group", (*galaxy.Client).RemoveNamespaceGroup))

	return cmd
}

type namespaceGroupFunc func(c *galaxy.Client, ctx context.Context, name, group string) (*galaxy.Namespace, error)

func namespaceGroupCmd(use, short string, fn namespaceGroupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			ns, err := fn(c, cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			cc.Statusf("Namespace %s has %d owner groups\n", ns.Name, len(ns.Groups))

			return nil
		},
	}
}
