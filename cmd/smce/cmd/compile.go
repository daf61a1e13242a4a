package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"libsmce-go/sketch"
	"libsmce-go/toolchain"
	"libsmce-go/types"
)

var (
	fqbn        string
	configPath  string
	compileOpts string
	compileDefs []string
	remoteLibs  []string
)

var compileCmd = &cobra.Command{
	Use:   "compile SKETCH",
	Short: "Compile a sketch and stream the build log",
	Long: `Compile a sketch for the given board. The build log is streamed to stderr.

Examples:
  smce compile --fqbn arduino:avr:uno blink.ino
  smce compile --fqbn esp32:esp32:esp32 --lib MQTT@2.5.0 --opts "-O2 -DFAST" net.ino
  smce compile --config sketch.json blink.ino        # Also accepts the legacy plugin format`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	addSketchFlags(compileCmd)
}

func addSketchFlags(c *cobra.Command) {
	c.Flags().StringVarP(&fqbn, "fqbn", "b", "", "fully qualified board name (overrides --config)")
	c.Flags().StringVarP(&configPath, "config", "c", "", "sketch configuration JSON")
	c.Flags().StringVar(&compileOpts, "opts", "", "extra compiler options, shell quoted")
	c.Flags().StringSliceVarP(&compileDefs, "define", "D", nil, "extra compile definitions")
	c.Flags().StringSliceVar(&remoteLibs, "lib", nil, "remote Arduino libraries as NAME@VERSION")
}

func sketchConfig() (types.SketchConfig, error) {
	var cfg types.SketchConfig
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, errors.Wrap(err, "read sketch config")
		}
		if cfg, err = types.DecodeSketchConfig(raw); err != nil {
			return cfg, err
		}
	}
	if fqbn != "" {
		cfg.FQBN = fqbn
	}
	if cfg.FQBN == "" {
		return cfg, errors.New("no board: pass --fqbn or a --config with one")
	}
	opts, err := types.ParseCompileOpts(compileOpts)
	if err != nil {
		return cfg, err
	}
	cfg.ExtraCompileOpts = append(cfg.ExtraCompileOpts, opts...)
	cfg.ExtraCompileDefs = append(cfg.ExtraCompileDefs, compileDefs...)
	for _, l := range remoteLibs {
		name, ver := l, ""
		if i := strings.LastIndexByte(l, '@'); i >= 0 {
			name, ver = l[:i], l[i+1:]
		}
		cfg.PreprocLibs = append(cfg.PreprocLibs, types.RemoteArduinoLibrary{Name: name, Version: ver})
	}
	return cfg, nil
}

// compileStreaming compiles sk while copying the build log to w.
func compileStreaming(ctx context.Context, tc *toolchain.Toolchain, sk *sketch.Sketch, w io.Writer) toolchain.Result {
	done := tc.CompileAsync(ctx, sk)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case res := <-done:
			tc.DrainBuildLog(w)
			return res
		case <-tick.C:
			tc.DrainBuildLog(w)
		}
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	cfg, err := sketchConfig()
	if err != nil {
		return err
	}
	sk := sketch.New(args[0], cfg)
	tc := toolchain.New(resourcesDir, toolchain.WithLogger(log))

	res := compileStreaming(cmd.Context(), tc, sk, cmd.ErrOrStderr())
	if res != toolchain.Ok {
		return errors.Wrapf(res.Err(), "compile %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %s (%s)\n", args[0], sk.UUID())
	return nil
}
