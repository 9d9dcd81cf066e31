package main

import (
	"context"
	"fmt"
	"time"

	"feedback-triage/database"
	"feedback-triage/logging"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewExportCommand() *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored submission to a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer logging.Flush(2 * time.Second)

			target, err := exportTarget(out, format, cmd.Flags().Changed("format"), time.Now())
			if err != nil {
				return err
			}

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ExportFile(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", n, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination path; a .xlsx extension writes a workbook (default feedback_export_<utc time>.<format>)")
	cmd.Flags().StringVar(&format, "format", "csv", "Export format (csv or xlsx); must agree with the --out extension when both are given")
	return cmd
}

// exportTarget resolves the output path. An explicit --format that disagrees
// with the --out extension is an error rather than being ignored.
func exportTarget(out, format string, formatSet bool, now time.Time) (string, error) {
	f, err := database.ParseExportFormat(format)
	if err != nil {
		return "", err
	}
	if out == "" {
		return fmt.Sprintf("feedback_export_%s.%s", now.UTC().Format("20060102_150405"), f), nil
	}
	if formatSet && database.FormatFromPath(out) != f {
		return "", errors.Errorf("--format %s does not match --out %s (writes %s)", f, out, database.FormatFromPath(out))
	}
	return out, nil
}
