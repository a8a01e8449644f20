package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/jywlabs/prdforge/internal/engine"
	"github.com/spf13/cobra"
)

// Version information - set via ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Long:  `Show prdforge version, commit hash, build information and the registered engines.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("prdforge %s\n", Version)
		fmt.Printf("  commit:  %s\n", Commit)
		fmt.Printf("  built:   %s\n", BuildDate)
		fmt.Printf("  go:      %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  engines: %s\n", strings.Join(engine.Available(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
