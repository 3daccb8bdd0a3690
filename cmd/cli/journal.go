package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/journal"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "inspect and maintain the stream journal",
	}

	cmd.AddCommand(newJournalStatsCmd())
	cmd.AddCommand(newJournalPruneCmd())

	return cmd
}

func openJournal(cmd *cobra.Command) (*journal.Store, int, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, err
	}

	store, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		return nil, 0, err
	}

	return store, cfg.Journal.PruneAfterDays, nil
}

func newJournalStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "show journal record counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return err
			}

			fmt.Printf("records: %d\nopen streams: %d\n", stats.TotalRecords, stats.OpenStreams)
			return nil
		},
	}
}

func newJournalPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "delete resolved journal records older than the configured window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, pruneDays, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().AddDate(0, 0, -pruneDays)
			removed, err := store.Prune(cutoff)
			if err != nil {
				return err
			}

			fmt.Printf("pruned %d records\n", removed)
			return nil
		},
	}
}
