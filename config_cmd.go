package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/galaxykit-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			path := configFilePath()

			if err := config.CreateConfig(path); err != nil {
				return err
			}

			cc.Statusf("Wrote %s\n", path)

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add-profile <name> <server>",
		Short: "Add a profile section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := config.AppendProfileSection(configFilePath(), args[0], args[1]); err != nil {
				return err
			}

			cc.Statusf("Added profile %s\n", args[0])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <profile> <key> <value>",
		Short: "Set a key in a profile section",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := config.CheckProfileKey(args[1]); err != nil {
				return err
			}

			if err := config.SetProfileKey(configFilePath(), args[0], args[1], args[2]); err != nil {
				return err
			}

			cc.Statusf("Set %s.%s\n", args[0], args[1])

			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <profile>",
		Short: "Remove a profile section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := config.DeleteProfileSection(configFilePath(), args[0]); err != nil {
				return err
			}

			cc.Statusf("Removed profile %s\n", args[0])

			return nil
		},
	})

	return cmd
}

// configFilePath is the file the config commands edit: --config, then
// GALAXYKIT_CONFIG, then the platform default.
func configFilePath() string {
	return config.ConfigPath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: flagConfigPath})
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	if cc.Cfg == nil {
		return errors.New("no configuration loaded")
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, effectiveDocument(cc.Cfg))
	}

	return config.RenderEffective(cc.Cfg, cc.Out)
}

// effectiveDocument is the --json form of "config show", secrets masked.
func effectiveDocument(rp *config.ResolvedProfile) map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}

		return "********"
	}

	return map[string]any{
		"profile": rp.Name,
		"settings": map[string]string{
			"server":             rp.Server,
			"username":           rp.Username,
			"password":           mask(rp.Password),
			"token":              mask(rp.Token),
			"auth_url":           rp.AuthURL,
			"gateway":            strconv.FormatBool(rp.Gateway),
			"gateway_url":        rp.GatewayURL,
			"ignore_certs":       strconv.FormatBool(rp.IgnoreCerts),
			"container_engine":   rp.ContainerEngine,
			"container_registry": rp.Registry(),
		},
		"polling": rp.Polling,
		"logging": rp.Logging,
		"network": rp.Network,
	}
}
