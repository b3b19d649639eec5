package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// deleteByName builds "<kind> delete <name>" around fn.
func deleteByName(kind string, fn func(c *galaxy.Client, ctx context.Context, name string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := fn(c, cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Deleted %s %s\n", kind, args[0])

			return nil
		},
	}
}

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Collection remotes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			remotes, err := c.ListRemotes(cmd.Context())
			if err != nil {
				return err
			}

			return printTyped(cc, remotes, "name")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> <url>",
		Short: "Create a collection remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.CreateRemote(cmd.Context(), galaxy.Remote{Name: args[0], URL: args[1]}); err != nil {
				return err
			}

			cc.Statusf("Created remote %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(deleteByName("remote", (*galaxy.Client).DeleteRemote))
	cmd.AddCommand(newRemoteCommunityCmd())

	return cmd
}

func newRemoteCommunityCmd() *cobra.Command {
	var cfg galaxy.CommunityRemote

	cmd := &cobra.Command{
		Use:   "community [url]",
		Short: "Show or replace the community sync configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				current, err := c.CommunityRemoteConfig(cmd.Context())
				if err != nil {
					return err
				}

				return cc.printDocument(current)
			}

			cfg.URL = args[0]

			updated, err := c.ConfigureCommunityRemote(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			return cc.printDocument(updated)
		},
	}

	cmd.Flags().BoolVar(&cfg.TLSValidation, "tls-validation", true, "validate the remote's certificate")
	cmd.Flags().BoolVar(&cfg.SignedOnly, "signed-only", false, "sync only signed collections")

	return cmd
}

func newRepositoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repository",
		Short: "Collection repositories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			repos, err := c.ListRepositories(cmd.Context())
			if err != nil {
				return err
			}

			return printTyped(cc, repos, "name")
		},
	})
	cmd.AddCommand(newRepositoryCreateCmd())
	cmd.AddCommand(deleteByName("repository", (*galaxy.Client).DeleteRepository))
	cmd.AddCommand(&cobra.Command{
		Use:   "collections <repository>",
		Short: "List the collections in a repository (galaxy_ng 4.7 and later)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.RepositoryCollections(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return cc.printDocument(list)
		},
	})

	return cmd
}

func newRepositoryCreateCmd() *cobra.Command {
	var opts galaxy.RepositoryOptions

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.CreateRepository(cmd.Context(), args[0], opts); err != nil {
				return err
			}

			cc.Statusf("Created repository %s\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", `pipeline label, e.g. "approved" or "staging"`)
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote to sync from")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().BoolVar(&opts.Private, "private", false, "hide from unauthenticated users")
	cmd.Flags().BoolVar(&opts.HideFromSearch, "hide-from-search", false, "exclude from cross-repository search")

	return cmd
}

func newDistributionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Collection distributions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			dists, err := c.ListDistributions(cmd.Context())
			if err != nil {
				return err
			}

			return printTyped(cc, dists, "name")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a distribution serving the repository of the same name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.CreateDistribution(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Created distribution %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(deleteByName("distribution", (*galaxy.Client).DeleteDistribution))

	return cmd
}

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Remote container registries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List remote registries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.ListRegistries(cmd.Context())
			if err != nil {
				return err
			}

			return cc.printRecords(list, "name")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> <url>",
		Short: "Register a remote container registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.CreateRegistry(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Created registry %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(deleteByName("registry", (*galaxy.Client).DeleteRegistry))

	return cmd
}
