package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/artifact"
	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// optArg returns args[i], or def when absent. "None" also means absent so
// positional defaults can be skipped.
func optArg(args []string, i int, def string) string {
	if i < len(args) && args[i] != "None" {
		return args[i]
	}

	return def
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Collections",
	}

	cmd.AddCommand(newCollectionListCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "upload [namespace] [name] [version]",
		Short: "Build and upload a throwaway test collection",
		Long: `Build a minimal collection archive and upload it, waiting for the import.
The namespace defaults to --username and is created if missing. The name is
random when omitted and the version defaults to 1.0.0.`,
		Args: cobra.MaximumNArgs(3),
		RunE: runCollectionUpload,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "move <namespace> <name> [version] [source] [destination]",
		Short: "Move a collection version between repositories",
		Args:  cobra.RangeArgs(2, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			version := optArg(args, 2, artifact.DefaultVersion)
			src := optArg(args, 3, galaxy.StagingRepo)
			dst := optArg(args, 4, galaxy.PublishedRepo)

			if err := c.MoveCollection(cmd.Context(), args[0], args[1], version, src, dst); err != nil {
				return err
			}

			cc.Statusf("Moved %s.%s %s from %s to %s\n", args[0], args[1], version, src, dst)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <namespace> <name> [version] [repository]",
		Short: "Delete a collection, or one version of it",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			version := optArg(args, 2, "")
			repo := optArg(args, 3, galaxy.PublishedRepo)

			if err := c.DeleteCollection(cmd.Context(), args[0], args[1], version, repo); err != nil {
				return err
			}

			cc.Statusf("Deleted %s.%s from %s\n", args[0], args[1], repo)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "deprecate <namespace> <name> [repository]",
		Short: "Mark a collection deprecated",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			repo := optArg(args, 2, galaxy.PublishedRepo)
			if err := c.DeprecateCollection(cmd.Context(), args[0], args[1], repo); err != nil {
				return err
			}

			cc.Statusf("Deprecated %s.%s in %s\n", args[0], args[1], repo)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "info [repository] <namespace> <name> <version>",
		Short: "Show a collection version",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			repo, rest := leadingRepo(args)

			info, err := c.CollectionInfo(cmd.Context(), repo, rest[0], rest[1], rest[2])
			if err != nil {
				return err
			}

			return cc.printDocument(info)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sign [repository] <namespace> <name> <version>",
		Short: "Sign a collection version with the default signing service",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			repo, rest := leadingRepo(args)

			result, err := c.SignCollection(cmd.Context(), repo, rest[0], rest[1], rest[2])
			if err != nil {
				return err
			}

			return cc.printDocument(result.Raw)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "search <name>",
		Short: "Search collection versions across repositories (galaxy_ng 4.7 and later)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			page, err := c.SearchCollections(cmd.Context(), url.Values{"name": {args[0]}})
			if err != nil {
				return err
			}

			return cc.printDocument(page.Data)
		},
	})

	return cmd
}

// leadingRepo splits an optional leading repository off
// [repository] <namespace> <name> <version>.
func leadingRepo(args []string) (string, []string) {
	if len(args) == 4 {
		return args[0], args[1:]
	}

	return galaxy.PublishedRepo, args
}

func newCollectionListCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.ListCollections(cmd.Context(), repo)
			if err != nil {
				return err
			}

			return cc.printDocument(list)
		},
	}

	cmd.Flags().StringVar(&repo, "repository", galaxy.PublishedRepo, "repository to list")

	return cmd
}

func runCollectionUpload(cmd *cobra.Command, args []string) error {
	cc, c, err := session(cmd)
	if err != nil {
		return err
	}

	spec := artifact.Spec{
		Namespace: optArg(args, 0, cc.Cfg.Username),
		Name:      optArg(args, 1, ""),
		Version:   optArg(args, 2, artifact.DefaultVersion),
	}

	if _, err := c.CreateNamespace(cmd.Context(), spec.Namespace, ""); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "galaxykit-upload-")
	if err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	defer os.RemoveAll(dir)

	a, _, err := c.UploadTestCollection(cmd.Context(), dir, spec)
	if err != nil {
		return err
	}

	return cc.printDocument(map[string]string{
		"namespace": a.Namespace,
		"name":      a.Name,
		"version":   a.Version,
		"filename":  a.Filename(),
		"sha256":    a.SHA256,
	})
}
