package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"SwingScanner/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the series cache",
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cache entries fetched longer ago than --older-than",
	RunE:  runPurge,
}

var purgeOlderThan time.Duration

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 7*24*time.Hour, "Age beyond which entries are deleted (0 deletes all)")
}

func runPurge(cmd *cobra.Command, args []string) error {
	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	p, ok := store.(cache.Purger)
	if !ok {
		return fmt.Errorf("cache backend %q cannot purge", cfg.Cache.Backend)
	}
	n, err := p.Purge(context.Background(), purgeOlderThan)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	log.Info().Int64("deleted", n).Str("older_than", purgeOlderThan.String()).Msg("cache purged")
	fmt.Printf("Deleted %s cache entries\n", humanize.Comma(n))
	return nil
}
