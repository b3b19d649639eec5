package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGreetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greet",
		Short: "Check that the server answers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hello",
		Short: "Say hello to the server without credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			c, err := cc.AnonymousClient(cmd.Context())
			if err != nil {
				return err
			}

			v, err := c.ServerVersion(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cc.Out, "Hello from galaxy_ng %s at %s\n", v, c.BaseURL())

			return err
		},
	})

	return cmd
}
