package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trainloop/capture/pkg/cli"
	"github.com/trainloop/capture/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the capture configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the YAML file, .env and
TRAINLOOP_* environment variables have been applied.`,
	RunE: showConfig,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration, reporting every invalid field.

Exit code 1 means the configuration cannot be used.`,
	RunE: validateConfig,
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == cli.FormatJSON {
		return render(w, cfg, nil)
	}

	source := cfg.Path
	if source == "" {
		source = "(none, defaults and environment only)"
	}
	fmt.Fprintf(w, "# source: %s\n", source)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config.File{Trainloop: *cfg}); err != nil {
		return err
	}
	return enc.Close()
}

func validateConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(w, "✗ Configuration invalid (%d errors)\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Fprintf(w, "  - %s\n", fe.Error())
			}
		}
		return err
	}

	source := cfg.Path
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(w, "✓ Configuration valid (%s)\n", source)
	if !cfg.Persistent() {
		fmt.Fprintln(w, "! No data folder configured; captured calls will not be persisted")
	}
	return nil
}
