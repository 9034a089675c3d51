package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trainloop/capture/pkg/capture/storage"
	"github.com/trainloop/capture/pkg/capture/store"
	"github.com/trainloop/capture/pkg/cli"
	"github.com/trainloop/capture/pkg/config"
	"github.com/trainloop/capture/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	dataFolder   string
	outputFormat string
	verbose      bool
)

var errNoDataFolder = errors.New("no data folder configured (set trainloop.data_folder, TRAINLOOP_DATA_FOLDER or --data-folder)")

var rootCmd = &cobra.Command{
	Use:   "trainloop",
	Short: "Inspect captured LLM calls",
	Long: `Trainloop inspects the data folder written by instrumented LLM clients.

Every captured call is a line in an events/<epoch_ms>.jsonl file; the
_registry.json document counts calls per source location and tag.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file or directory (default: discovered)")
	rootCmd.PersistentFlags().StringVarP(&dataFolder, "data-folder", "d", "", "override the data folder")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}

	if dataFolder != "" {
		cfg.DataFolder = dataFolder
		if !strings.Contains(dataFolder, "://") {
			if abs, err := filepath.Abs(dataFolder); err == nil {
				cfg.DataFolder = abs
			}
		}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError(cfg.Path, err)
	}
	return cfg, nil
}

// newLogger builds the command's logger. Logs go to stderr so they never
// mix with command output.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:         cfg.LogLevel,
		Format:        cfg.LogFormat,
		RedactSecrets: true,
		Writer:        os.Stderr,
	})
}

// openStore opens the configured data folder.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if !cfg.Persistent() {
		return nil, errNoDataFolder
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(ctx, cfg.DataFolder)
	if err != nil {
		return nil, fmt.Errorf("open data folder: %w", err)
	}
	return store.New(backend, store.WithLogger(logger.Slog())), nil
}

// render writes a result in the selected format. Structured output (JSON)
// uses data; text and CSV use table.
func render(w io.Writer, data any, table *cli.Table) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	switch {
	case format == cli.FormatJSON:
		return cli.NewFormatter(cli.FormatJSON).FormatTo(w, data)
	case table != nil:
		return cli.NewFormatter(format).FormatTo(w, table)
	case format == cli.FormatCSV:
		return fmt.Errorf("csv output is not supported by this command")
	default:
		return cli.NewFormatter(cli.FormatText).FormatTo(w, data)
	}
}
