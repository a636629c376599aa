package main

import (
	"github.com/spf13/cobra"

	"github.com/populationgenomics/metamist-sub002/config"
)

func configCommands(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instance's computed configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(a.configFile); err != nil {
				return err
			}
			cfg, err := config.Fetch()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}
