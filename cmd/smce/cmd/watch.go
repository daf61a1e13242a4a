package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"libsmce-go/sketch"
	"libsmce-go/toolchain"
)

var watchCmd = &cobra.Command{
	Use:   "watch SKETCH",
	Short: "Recompile a sketch whenever its source changes",
	Long: `Compile once, then again whenever the sketch file (or, for a sketch
directory, any file in it) changes. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addSketchFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	cfg, err := sketchConfig()
	if err != nil {
		return err
	}
	sk := sketch.New(args[0], cfg)
	tc := toolchain.New(resourcesDir, toolchain.WithLogger(log))

	return tc.Watch(cmd.Context(), sk, func(res toolchain.Result) {
		tc.DrainBuildLog(cmd.ErrOrStderr())
		fmt.Fprintf(cmd.OutOrStdout(), "build: %s\n", res)
	})
}
