package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/history"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "list stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ids, err := history.NewFileStore(cfg.DataDir).List()
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Println("no sessions")
				return nil
			}

			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
