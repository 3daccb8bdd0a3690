package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "fold crashed streams back into the session log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.engine.Recover(); err != nil {
				return err
			}

			fmt.Println("recovery complete")
			return nil
		},
	}
}
