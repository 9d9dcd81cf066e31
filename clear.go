package main

import (
	"context"
	"fmt"
	"time"

	"feedback-triage/logging"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewClearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("clear removes all feedback and cannot be undone; re-run with --yes")
			}
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

			if err := store.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all feedback cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the irreversible clear")
	return cmd
}
