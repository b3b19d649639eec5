package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/engine"
)

// engineRunner runs the container engine binary. Tests replace it.
var engineRunner engine.Runner = engine.ExecRunner{}

// engineLogins is shared by every engine client in the process so one
// registry login serves pull and push alike.
var engineLogins = &engine.LoginCache{}

func newContainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Execution environments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List execution environment repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			list, err := c.ListContainers(cmd.Context())
			if err != nil {
				return err
			}

			return cc.printRecords(list, "name")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "readme <container> [readme]",
		Short: "Show or replace a container readme",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				readme, err := c.ContainerReadme(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if cc.Flags.JSON {
					return printJSON(cc.Out, readme)
				}

				_, err = fmt.Fprintln(cc.Out, readme.Text)

				return err
			}

			if _, err := c.SetContainerReadme(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Updated readme of %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> <upstream-name> <registry>",
		Short: "Create a remote execution environment from a registry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if _, err := c.CreateContainer(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}

			cc.Statusf("Created container %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an execution environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteContainer(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Deleted container %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull <image>",
		Short: "Pull an image from the hub registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ec, err := containerEngine(cmd)
			if err != nil {
				return err
			}

			if err := ec.Login(cmd.Context(), cc.Cfg.Username, cc.Cfg.Password); err != nil {
				return err
			}

			if err := ec.Pull(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Pulled %s\n", ec.Ref(args[0]))

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tag <image> <tag>",
		Short: "Tag a local image for the hub registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ec, err := containerEngine(cmd)
			if err != nil {
				return err
			}

			if err := ec.Tag(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Tagged %s as %s\n", args[0], ec.Ref(args[1]))

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "push <tag>",
		Short: "Push a tagged image to the hub registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ec, err := containerEngine(cmd)
			if err != nil {
				return err
			}

			if err := ec.Login(cmd.Context(), cc.Cfg.Username, cc.Cfg.Password); err != nil {
				return err
			}

			if err := ec.Push(cmd.Context(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Pushed %s\n", ec.Ref(args[0]))

			return nil
		},
	})

	return cmd
}

// containerEngine builds an engine client for the profile's registry.
// Registry logins need a username and password.
func containerEngine(cmd *cobra.Command) (*CLIContext, *engine.Client, error) {
	cc := mustCLIContext(cmd.Context())

	if cc.Cfg.Username == "" || cc.Cfg.Password == "" {
		return nil, nil, errors.New("container commands need a username and password")
	}

	ec, err := engine.New(engine.Options{
		Engine:    cc.Cfg.ContainerEngine,
		Registry:  cc.Cfg.Registry(),
		TLSVerify: !cc.Cfg.IgnoreCerts,
		Runner:    engineRunner,
		Logins:    engineLogins,
		Logger:    cc.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return cc, ec, nil
}

func newContainerImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container-image",
		Short: "Execution environment images",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <container>",
		Short: "List the images of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			images, err := c.ListContainerImages(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return cc.printRecords(images, "digest")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <container> <image>",
		Short: "Delete an image by digest or tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteContainerImage(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Deleted %s from %s\n", args[1], args[0])

			return nil
		},
	})

	return cmd
}
