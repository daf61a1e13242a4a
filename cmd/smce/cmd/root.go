package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose      bool
	resourcesDir string
)

var rootCmd = &cobra.Command{
	Use:   "smce",
	Short: "Virtual Arduino board runner",
	Long: `Compile Arduino sketches for a virtual board and run them on the host.

Examples:
  smce check -r ./resources                          # Verify the build environment
  smce compile -r ./resources --fqbn arduino:avr:uno blink.ino
  smce run -r ./resources --fqbn arduino:avr:uno echo.ino
  smce profiles                                      # List known boards`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	def := os.Getenv("SMCE_RESOURCES")
	if def == "" {
		def = "resources"
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&resourcesDir, "resources", "r", def,
		"resource directory holding the sketch build system ($SMCE_RESOURCES)")
}

func newLogger() *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Encoding = "console"
		l, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
