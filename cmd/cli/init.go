package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "write the default config file if none exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}

			if _, err := config.LoadOrCreate(path); err != nil {
				return err
			}

			fmt.Println("config at", path)
			return nil
		},
	}
}
