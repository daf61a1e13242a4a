// Package board runs sketches against a virtual microcontroller board.
//
// A Board is driven by one owner goroutine calling its lifecycle methods and
// Tick. Host code reaches the peripherals through a View, which may be used
// from another goroutine concurrently with ticking.
package board

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"libsmce-go/bus"
	"libsmce-go/errcode"
	"libsmce-go/sketch"
	"libsmce-go/types"
	"libsmce-go/x/logbuf"
	"libsmce-go/x/timex"
)

// CrashExitCode is recorded when a program panics.
const CrashExitCode = -1

const runtimeLogLimit = 64 << 10

// Topic tokens.
const (
	TokBoard  = "board"
	TokStatus = "status"
	TokExit   = "exit"
)

// StatusTopic is where a board publishes its retained types.BoardState.
func StatusTopic(name string) bus.Topic { return bus.T(TokBoard, name, TokStatus) }

// ExitTopic is where a board publishes types.BoardExit when a run ends.
func ExitTopic(name string) bus.Topic { return bus.T(TokBoard, name, TokExit) }

// ExitInfo is what Tick observed about the program.
type ExitInfo struct {
	Exited bool
	Code   int
}

type Option func(*Board)

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *zap.Logger) Option { return func(b *Board) { b.log = l } }

// WithBus publishes lifecycle events on bus b.
func WithBus(b *bus.Bus) Option {
	return func(bd *Board) { bd.conn = b.NewConnection("board") }
}

// WithName names the board in logs and topics. The default is "board".
func WithName(name string) Option { return func(b *Board) { b.name = name } }

// Board is a virtual board and its lifecycle state machine.
type Board struct {
	name string
	log  *zap.Logger
	conn *bus.Connection

	mu       sync.Mutex
	status   types.BoardStatus
	cfg      types.BoardConfig
	sk       *sketch.Sketch
	gen      atomic.Uint64
	ar       *arena
	run      *run
	exited   bool
	exitCode int
	ticks    uint64

	rtlog *logbuf.Buffer
}

// New returns an unconfigured board.
func New(opts ...Option) *Board {
	b := &Board{rtlog: logbuf.New(runtimeLogLimit)}
	for _, o := range opts {
		o(b)
	}
	if b.name == "" {
		b.name = "board"
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	b.log = b.log.With(zap.String("board", b.name))
	return b
}

func (b *Board) Name() string { return b.name }

// Status is the current lifecycle state.
func (b *Board) Status() types.BoardStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// ExitCode returns the code of the last run and whether it has exited.
func (b *Board) ExitCode() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitCode, b.exited
}

// Config returns a copy of the active topology.
func (b *Board) Config() (types.BoardConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == types.StatusUnconfigured {
		return types.BoardConfig{}, false
	}
	return b.cfg.Clone(), true
}

// Ticks counts housekeeping steps performed while running.
func (b *Board) Ticks() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ticks
}

// ---- lifecycle

func stateErr(op string, s types.BoardStatus) error {
	return errcode.New(errcode.InvalidState, op, "board is "+s.String())
}

// Configure validates cfg and allocates fresh peripherals. Views taken
// before the call become absent. On error nothing changes.
func (b *Board) Configure(cfg types.BoardConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != types.StatusUnconfigured && b.status != types.StatusConfigured {
		return stateErr("configure", b.status)
	}
	if err := cfg.Validate(); err != nil {
		b.log.Warn("configuration rejected", zap.Error(err))
		return &errcode.E{C: errcode.Of(err), Op: "configure", Err: err}
	}
	b.cfg = cfg.Clone()
	b.realloc()
	b.log.Info("configured",
		zap.Int("pins", len(cfg.Pins)),
		zap.Int("uarts", len(cfg.UartChannels)),
		zap.Int("frame_buffers", len(cfg.FrameBuffers)))
	b.setStatus(types.StatusConfigured)
	return nil
}

func (b *Board) realloc() {
	gen := b.gen.Add(1)
	b.ar = newArena(b.cfg, gen, &b.gen)
}

// AttachSketch binds a compiled sketch to a configured board.
func (b *Board) AttachSketch(sk *sketch.Sketch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.status {
	case types.StatusConfigured, types.StatusReady:
	case types.StatusRunning, types.StatusSuspended:
		return errcode.New(errcode.AlreadyRunning, "attach", "board is "+b.status.String())
	default:
		return stateErr("attach", b.status)
	}
	if sk == nil || !sk.IsCompiled() {
		return errcode.New(errcode.NotCompiled, "attach", "sketch is not compiled")
	}
	b.sk = sk
	b.log.Info("sketch attached", zap.Stringer("sketch", sk.UUID()), zap.String("source", sk.Source()))
	b.setStatus(types.StatusReady)
	return nil
}

// Start launches the attached program on its own goroutine.
func (b *Board) Start() error {
	return b.StartContext(context.Background())
}

// StartContext is Start with a parent context bounding the run.
func (b *Board) StartContext(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.status {
	case types.StatusReady:
	case types.StatusConfigured:
		return errcode.New(errcode.NoSketch, "start", "no sketch attached")
	case types.StatusRunning, types.StatusSuspended:
		return errcode.New(errcode.AlreadyRunning, "start", "board is "+b.status.String())
	default:
		return stateErr("start", b.status)
	}
	prog := b.sk.Program()
	if prog == nil {
		return errcode.New(errcode.NotCompiled, "start", "sketch lost its program")
	}
	b.exited, b.exitCode, b.ticks = false, 0, 0
	r := newRun(ctx)
	dev := &device{a: b.ar, r: r, log: b.rtlog}
	b.run = r
	go func() { r.done <- b.execute(r.ctx, prog, dev) }()
	b.log.Info("started")
	b.setStatus(types.StatusRunning)
	return nil
}

func (b *Board) execute(ctx context.Context, prog sketch.Program, dev sketch.Device) (code int) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error("program panicked", zap.Any("panic", p))
			fmt.Fprintf(b.rtlog, "panic: %v\n", p)
			code = CrashExitCode
		}
	}()
	return prog.Run(ctx, dev)
}

// Tick performs one non-blocking housekeeping step: it flushes staged UART
// output and records the program's exit if it has ended. Outside Running it
// only reports the recorded exit state.
func (b *Board) Tick() ExitInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != types.StatusRunning {
		return ExitInfo{Exited: b.exited, Code: b.exitCode}
	}
	b.ticks++
	b.ar.flushUarts()
	select {
	case code := <-b.run.done:
		b.finish(code)
	default:
	}
	return ExitInfo{Exited: b.exited, Code: b.exitCode}
}

// finish records an exit; callers hold mu.
func (b *Board) finish(code int) {
	b.run.cancel()
	b.ar.flushUarts()
	b.exited, b.exitCode = true, code
	b.log.Info("program exited", zap.Int("exit_code", code))
	if b.conn != nil {
		b.conn.Publish(b.conn.NewMessage(ExitTopic(b.name),
			types.BoardExit{Board: b.name, Code: code, TS: timex.NowMs()}, false))
	}
	b.setStatus(types.StatusExited)
}

// Suspend blocks the program at its next peripheral call.
func (b *Board) Suspend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != types.StatusRunning {
		return stateErr("suspend", b.status)
	}
	b.run.gate.pause()
	b.setStatus(types.StatusSuspended)
	return nil
}

// Resume releases a suspended program.
func (b *Board) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != types.StatusSuspended {
		return stateErr("resume", b.status)
	}
	b.run.gate.resume()
	b.setStatus(types.StatusRunning)
	return nil
}

// Terminate ends the run. The exit code is the program's own if it had
// already exited, otherwise 0.
func (b *Board) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.status.Active() {
		return stateErr("terminate", b.status)
	}
	b.terminateLocked()
	return nil
}

func (b *Board) terminateLocked() {
	code := 0
	select {
	case code = <-b.run.done:
	default:
	}
	b.finish(code)
}

// Reset stops any run, detaches the sketch and reallocates the
// peripherals from the stored configuration.
func (b *Board) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == types.StatusUnconfigured {
		return stateErr("reset", b.status)
	}
	if b.status.Active() {
		b.terminateLocked()
	}
	if b.run != nil {
		b.run.cancel()
		b.run = nil
	}
	b.sk = nil
	b.exited, b.exitCode, b.ticks = false, 0, 0
	b.realloc()
	b.rtlog.Reset()
	b.log.Info("reset")
	b.setStatus(types.StatusConfigured)
	return nil
}

// View returns host handles on the current peripherals.
func (b *Board) View() (View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == types.StatusUnconfigured {
		return View{}, stateErr("view", b.status)
	}
	return View{a: b.ar}, nil
}

// ReadRuntimeLog drains up to len(p) bytes the program logged. It never
// blocks and returns 0 when nothing is pending.
func (b *Board) ReadRuntimeLog(p []byte) int { return b.rtlog.Drain(p) }

// RuntimeLogDropped counts runtime log bytes discarded because the host
// drained too slowly. Reset zeroes it.
func (b *Board) RuntimeLogDropped() uint64 { return b.rtlog.Lost() }

// ---- convenience

// Launch configures the board, attaches sk and starts it.
func (b *Board) Launch(cfg types.BoardConfig, sk *sketch.Sketch) error {
	if err := b.Configure(cfg); err != nil {
		return err
	}
	if err := b.AttachSketch(sk); err != nil {
		return err
	}
	return b.Start()
}

// Stop ticks once, terminates the program if it is still alive and
// returns the exit code.
func (b *Board) Stop() int {
	if info := b.Tick(); info.Exited {
		return info.Code
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.Active() {
		b.terminateLocked()
	}
	return b.exitCode
}

// setStatus records s and publishes it; callers hold mu.
func (b *Board) setStatus(s types.BoardStatus) {
	prev := b.status
	b.status = s
	if prev != s {
		b.log.Debug("status", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
	if b.conn != nil {
		b.conn.Publish(b.conn.NewMessage(StatusTopic(b.name),
			types.BoardState{Board: b.name, Status: s, TS: timex.NowMs()}, true))
	}
}
