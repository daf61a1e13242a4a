package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"libsmce-go/board"
	"libsmce-go/bus"
	"libsmce-go/profiles"
	"libsmce-go/services/uartio"
	"libsmce-go/sketch"
	"libsmce-go/toolchain"
	"libsmce-go/types"
)

var (
	boardPath string
	sdDir     string
	sdCSPin   uint16
)

const quitLine = "~QUIT"

var runCmd = &cobra.Command{
	Use:   "run SKETCH",
	Short: "Compile a sketch and talk to it over UART0",
	Long: `Compile a sketch, start it on a virtual board and attach the terminal
to its first serial channel. Lines typed on stdin go to the sketch; what the
sketch prints is echoed back. An empty line, ~QUIT or EOF stops the board.

The board topology comes from --board, else from the profile of the FQBN.

Examples:
  smce run --fqbn arduino:avr:uno echo.ino
  smce run --fqbn arduino:avr:uno --board myboard.json --sd ./card echo.ino`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSketchFlags(runCmd)
	runCmd.Flags().StringVar(&boardPath, "board", "", "board topology JSON")
	runCmd.Flags().StringVar(&sdDir, "sd", "", "host directory mounted as an SD card")
	runCmd.Flags().Uint16Var(&sdCSPin, "sd-cs", 0, "chip-select pin of the SD card")
}

func boardConfig(fqbn string) (types.BoardConfig, error) {
	var cfg types.BoardConfig
	if boardPath != "" {
		raw, err := os.ReadFile(boardPath)
		if err != nil {
			return cfg, errors.Wrap(err, "read board config")
		}
		if cfg, err = profiles.DecodeBoard(raw); err != nil {
			return cfg, err
		}
	} else if p, ok := profiles.Lookup(fqbn); ok {
		cfg = p.Board.Clone()
	}
	if len(cfg.UartChannels) == 0 {
		ch := types.DefaultUartChannel()
		ch.RxBufferLength, ch.TxBufferLength = 512, 512
		cfg.UartChannels = append(cfg.UartChannels, ch)
	}
	if sdDir != "" {
		if !slices.Contains(cfg.Pins, sdCSPin) {
			cfg.Pins = append(cfg.Pins, sdCSPin)
		}
		cfg.SDCards = append(cfg.SDCards, types.SecureDigitalStorage{CSPin: sdCSPin, RootDir: sdDir})
	}
	return cfg, cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := sketchConfig()
	if err != nil {
		return err
	}
	bcfg, err := boardConfig(cfg.FQBN)
	if err != nil {
		return err
	}
	sk := sketch.New(args[0], cfg)
	tc := toolchain.New(resourcesDir, toolchain.WithLogger(log))

	fmt.Fprintln(out, "Compiling...")
	var buildLog bytes.Buffer
	if res := compileStreaming(ctx, tc, sk, &buildLog); res != toolchain.Ok {
		cmd.ErrOrStderr().Write(buildLog.Bytes())
		return errors.Wrap(res.Err(), "failed to compile")
	}
	fmt.Fprintln(out, "Done")

	name := filepath.Base(args[0])
	bs := bus.NewBus(64)
	bd := board.New(board.WithLogger(log), board.WithName(name), board.WithBus(bs))
	if err := bd.Launch(bcfg, sk); err != nil {
		return err
	}
	stopMonitor := monitorUarts(ctx, bs, bd, out)
	code := console(ctx, bd, cmd.InOrStdin(), out, cmd.ErrOrStderr())
	stopMonitor()
	fmt.Fprintf(out, "stopped (exit code %d)\n", code)
	return nil
}

// monitorUarts prints, line by line, whatever the sketch sends on UART
// channels other than the console's.
func monitorUarts(ctx context.Context, bs *bus.Bus, bd *board.Board, out io.Writer) (stop func()) {
	view, err := bd.View()
	if err != nil || view.UartCount() < 2 {
		return func() {}
	}
	mon := bs.NewConnection("monitor")
	events := mon.Subscribe(bus.T(board.TokBoard, bd.Name(), "uart", bus.Any, uartio.DirTX))
	var bridges []*uartio.Bridge
	for i := 1; i < view.UartCount(); i++ {
		bridges = append(bridges, uartio.Attach(ctx, bs.NewConnection(fmt.Sprintf("uart%d", i)), view.Uart(i), uartio.Config{
			Board:     bd.Name(),
			Channel:   i,
			Mode:      uartio.ModeLines,
			IdleFlush: 100 * time.Millisecond,
		}))
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for m := range events.Channel() {
			if ev, ok := m.Payload.(uartio.Event); ok {
				fmt.Fprintf(out, "uart%d: %q\n", ev.Channel, ev.Data)
			}
		}
	}()
	return func() {
		for _, br := range bridges {
			br.Stop()
		}
		mon.Disconnect()
		<-printed
	}
}

// console shuttles stdin lines into UART0 and UART0 output back out until
// the user quits, the input ends, ctx is done or the sketch exits.
func console(ctx context.Context, bd *board.Board, in io.Reader, out, errw io.Writer) int {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	view, err := bd.View()
	if err != nil {
		return bd.Stop()
	}
	port := view.Uart(0).Port()
	buf := make([]byte, 512)
	var pending []byte
	var dropped uint64
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	for {
		info := bd.Tick()
		if n, _ := port.Read(buf); n > 0 {
			fmt.Fprintf(out, "arduino: %q\n", buf[:n])
		}
		if n := bd.ReadRuntimeLog(buf); n > 0 {
			errw.Write(buf[:n])
		}
		if d := bd.RuntimeLogDropped(); d > dropped {
			fmt.Fprintf(errw, "(runtime log: %d bytes dropped)\n", d-dropped)
			dropped = d
		}
		if info.Exited {
			fmt.Fprintln(out, "sketch exited")
			return info.Code
		}
		if len(pending) > 0 {
			n, _ := port.Write(pending)
			pending = pending[n:]
		}

		select {
		case <-ctx.Done():
			return bd.Stop()
		case line, ok := <-lines:
			if !ok || line == "" || line == quitLine {
				fmt.Fprintln(out, "stopping..")
				return bd.Stop()
			}
			pending = append(pending, line...)
		case <-tick.C:
		}
	}
}
