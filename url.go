package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Generic GET/POST against the API",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <path>",
		Short: "GET a path relative to the API root and print the JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			var out any
			if err := c.Get(cmd.Context(), args[0], &out); err != nil {
				return err
			}

			return cc.printDocument(out)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "post <path>",
		Short: "POST a JSON body read from stdin and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, c, err := session(cmd)
			if err != nil {
				return err
			}

			body, err := io.ReadAll(cc.In)
			if err != nil {
				return fmt.Errorf("reading request body: %w", err)
			}

			if len(body) > 0 && !json.Valid(body) {
				return errors.New("request body on stdin is not valid JSON")
			}

			var out any
			if err := c.Post(cmd.Context(), args[0], json.RawMessage(body), &out); err != nil {
				return err
			}

			return cc.printDocument(out)
		},
	})

	return cmd
}
