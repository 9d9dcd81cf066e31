package main

import (
	"context"
	"encoding/json"
	"time"

	"feedback-triage/analytics"
	"feedback-triage/logging"

	"github.com/spf13/cobra"
)

func NewStatsCommand() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics and the sentiment overview as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer logging.Flush(2 * time.Second)

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Statistics(ctx)
			if err != nil {
				return err
			}
			all, err := store.GetAll(ctx)
			if err != nil {
				return err
			}
			latest, err := store.GetRecent(ctx, recent)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"statistics": stats,
				"overview":   analytics.Overview(all, thresholds(cfg)),
				"recent":     latest,
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "Number of most recent submissions to include")
	return cmd
}
