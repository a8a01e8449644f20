package cmd

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/jywlabs/prdforge/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Show the current prdforge configuration.

Reads .prdforge/config.yaml if present and prints the effective settings:
keys missing from the file keep their default values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(".", os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(dir string, w io.Writer) error {
	path := config.Path(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "No .prdforge/config.yaml found (using defaults)")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run 'prdforge init' to create a configuration file.")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "Effective configuration (%s):\n\n", path)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	printConfig(w, cfg)
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "  engine: %s\n", cfg.Engine)
	if len(cfg.Engines) > 0 {
		fmt.Fprintln(w, "  engines:")
		for _, name := range slices.Sorted(maps.Keys(cfg.Engines)) {
			ec := cfg.Engines[name]
			fmt.Fprintf(w, "    %s:\n", name)
			if ec.Model != "" {
				fmt.Fprintf(w, "      model: %s\n", ec.Model)
			}
			if ec.Timeout > 0 {
				fmt.Fprintf(w, "      timeout: %s\n", ec.Timeout)
			}
		}
	}
	fmt.Fprintf(w, "  maxIterations: %d\n", cfg.MaxIterations)
	fmt.Fprintf(w, "  maxRetries: %d\n", cfg.MaxRetries)
	fmt.Fprintf(w, "  retryDelay: %s\n", cfg.RetryDelay)
	fmt.Fprintln(w, "  gate:")
	fmt.Fprintf(w, "    autoAnswerThreshold: %.2f\n", cfg.Gate.AutoAnswerThreshold)
	fmt.Fprintf(w, "    skipIfHighConfidence: %t\n", cfg.Gate.SkipIfHighConfidence)
	fmt.Fprintln(w, "  store:")
	fmt.Fprintf(w, "    backend: %s\n", cfg.Store.Backend)
	if cfg.Store.DSN != "" {
		fmt.Fprintln(w, "    dsn: (set)")
	}
	fmt.Fprintln(w, "  testing:")
	fmt.Fprintf(w, "    framework: %s\n", cfg.Testing.Framework)
	fmt.Fprintf(w, "    command: %s\n", cfg.Testing.Command)
	fmt.Fprintln(w, "  cache:")
	fmt.Fprintf(w, "    size: %d\n", cfg.CacheSize)
	fmt.Fprintln(w, "  logging:")
	fmt.Fprintf(w, "    level: %s\n", cfg.LogLevel)
}
