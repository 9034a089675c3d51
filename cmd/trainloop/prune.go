package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/trainloop/capture/pkg/capture/retention"
	"github.com/trainloop/capture/pkg/capture/store"
	"github.com/trainloop/capture/pkg/cli"
)

var pruneFlags struct {
	days     int
	maxFiles int
	dryRun   bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete event files outside the retention policy",
	Long: `Delete event files older than the retention period, then the oldest files
beyond the file limit. The registry is never pruned.

Flags override trainloop.retention from the configuration.

Examples:
  trainloop prune --days 30
  trainloop prune --max-files 500 --dry-run`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneFlags.days, "days", -1, "retention period in days (default: from config)")
	pruneCmd.Flags().IntVar(&pruneFlags.maxFiles, "max-files", -1, "maximum number of event files to keep (default: from config)")
	pruneCmd.Flags().BoolVar(&pruneFlags.dryRun, "dry-run", false, "list the files that would be deleted")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pruneFlags.days >= 0 {
		cfg.Retention.Days = pruneFlags.days
	}
	if pruneFlags.maxFiles >= 0 {
		cfg.Retention.MaxFiles = pruneFlags.maxFiles
	}
	w := cmd.OutOrStdout()
	if !cfg.Retention.Enabled() {
		fmt.Fprintln(w, "Retention is disabled; nothing to prune")
		return nil
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer st.Close()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	pruner := retention.NewPruner(st, &retention.Config{
		RetentionDays: cfg.Retention.Days,
		MaxFiles:      cfg.Retention.MaxFiles,
		PruneSchedule: cfg.Retention.PruneSchedule,
		Logger:        logger.Slog(),
	})

	if pruneFlags.dryRun {
		plan, err := pruner.Plan(cmd.Context())
		if err != nil {
			return cli.NewCommandError("prune", err)
		}
		table := &cli.Table{Columns: []string{"FILE", "WRITTEN"}}
		names := make([]string, 0, len(plan))
		for _, f := range plan {
			names = append(names, path.Base(f.Key))
			table.Data = append(table.Data, []string{path.Base(f.Key), store.FormatTimestamp(f.TimestampMs)})
		}
		return render(w, map[string][]string{"wouldDelete": names}, table)
	}

	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	names := make([]string, 0, len(deleted))
	for _, key := range deleted {
		names = append(names, path.Base(key))
	}
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == cli.FormatJSON {
		return render(w, map[string][]string{"deleted": names}, nil)
	}
	fmt.Fprintf(w, "✓ Deleted %d event files\n", len(names))
	return nil
}
