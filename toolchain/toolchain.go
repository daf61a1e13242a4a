// Package toolchain compiles sketches into runnable programs and streams the
// build log while it does.
package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"libsmce-go/bus"
	"libsmce-go/profiles"
	"libsmce-go/sketch"
	"libsmce-go/types"
	"libsmce-go/x/logbuf"
	"libsmce-go/x/timex"
)

// TopicBuild is where build reports are published, suffixed by sketch id.
const TopicBuild = "build"

type Option func(*Toolchain)

// WithBuilder replaces the default exec builder.
func WithBuilder(b Builder) Option { return func(t *Toolchain) { t.builder = b } }

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *zap.Logger) Option { return func(t *Toolchain) { t.log = l } }

// WithBus publishes a types.BuildReport after every compile.
func WithBus(b *bus.Bus) Option {
	return func(t *Toolchain) { t.conn = b.NewConnection("toolchain") }
}

// WithTargets replaces the board profile resolver.
func WithTargets(r profiles.Resolver) Option { return func(t *Toolchain) { t.targets = r } }

// Toolchain owns a resource directory and a build log. Compile may run on a
// worker goroutine while any goroutine drains the log with ReadBuildLog.
type Toolchain struct {
	resdir  string
	builder Builder
	targets profiles.Resolver
	log     *zap.Logger
	conn    *bus.Connection

	mu       sync.Mutex
	toolPath string

	buildLog  *logbuf.Buffer
	compiling atomic.Int32
	finished  atomic.Uint64 // completed compiles
}

// New returns a toolchain rooted at resourceDir.
func New(resourceDir string, opts ...Option) *Toolchain {
	t := &Toolchain{
		resdir:   resourceDir,
		targets:  profiles.Default,
		buildLog: logbuf.New(0),
	}
	for _, o := range opts {
		o(t)
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if t.builder == nil {
		t.builder = NewExecBuilder(WithExecLogger(t.log))
	}
	return t
}

func (t *Toolchain) ResourceDir() string { return t.resdir }

// ToolPath is the build tool located by the last successful environment
// check, or "" before one.
func (t *Toolchain) ToolPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toolPath
}

// CheckSuitableEnvironment verifies the resource directory and the build
// tool. It touches no sketch.
func (t *Toolchain) CheckSuitableEnvironment(ctx context.Context) Result {
	fi, err := os.Stat(t.resdir)
	switch {
	case err != nil:
		t.log.Warn("resource directory missing", zap.String("resdir", t.resdir), zap.Error(err))
		return ResdirAbsent
	case !fi.IsDir():
		return ResdirFile
	}
	entries, err := os.ReadDir(t.resdir)
	if err != nil {
		return ResdirAbsent
	}
	if len(entries) == 0 {
		return ResdirEmpty
	}
	path, err := t.builder.CheckEnvironment(ctx, t.resdir)
	if err != nil {
		r := ResultOf(err)
		t.log.Warn("build tool unsuitable", zap.Stringer("result", r), zap.Error(err))
		return r
	}
	t.mu.Lock()
	t.toolPath = path
	t.mu.Unlock()
	return Ok
}

// Compile builds sk and binds the program to it on success. It blocks for
// the duration of the build; ctx bounds the builder's processes.
func (t *Toolchain) Compile(ctx context.Context, sk *sketch.Sketch) Result {
	t.compiling.Add(1)
	defer t.compiling.Add(-1)

	start := time.Now()
	res := Normalize(t.compile(ctx, sk))
	fields := []zap.Field{zap.Stringer("result", res), zap.Duration("took", time.Since(start))}
	if sk != nil {
		fields = append(fields, zap.Stringer("sketch", sk.UUID()))
	}
	if res == Ok {
		t.log.Info("compiled", fields...)
	} else {
		t.log.Warn("compile failed", fields...)
	}
	if t.conn != nil && sk != nil {
		t.conn.Publish(t.conn.NewMessage(bus.T(TopicBuild, sk.UUID().Hex()),
			types.BuildReport{Sketch: sk.UUID().Hex(), Result: res.String(), OK: res == Ok, TS: timex.NowMs()}, true))
	}
	t.finished.Add(1)
	return res
}

func (t *Toolchain) compile(ctx context.Context, sk *sketch.Sketch) Result {
	if sk == nil {
		t.logf("-- No sketch given\n")
		return SketchInvalid
	}
	if res := t.CheckSuitableEnvironment(ctx); res != Ok {
		t.logf("-- Environment check failed: %s (resources: %s)\n", res, t.resdir)
		return res
	}
	cfg := sk.Config()
	prof, known := t.targets.Resolve(cfg.FQBN)
	if !known && len(cfg.ExtraBoardURIs) == 0 {
		t.logf("-- Unknown board %q: no profile and no extra board URIs\n", cfg.FQBN)
		return ConfigureFailed
	}
	if sk.Source() == "" {
		t.logf("-- Sketch has no source\n")
		return SketchInvalid
	}
	req := BuildRequest{
		ResourceDir: t.resdir,
		Source:      sk.Source(),
		SketchID:    sk.UUID(),
		Config:      cfg,
		Profile:     prof,
		WorkDir:     filepath.Join(t.resdir, "build", sk.UUID().Hex()),
	}
	t.logf("-- Compiling %s for %s\n", req.Source, cfg.FQBN)
	prog, err := t.builder.Build(ctx, req, t.buildLog)
	if err != nil {
		t.logf("-- Build error: %v\n", err)
		return ResultOf(err)
	}
	if prog == nil {
		t.logf("-- Builder produced no program\n")
		return Generic
	}
	sk.Bind(prog)
	t.logf("-- Build succeeded\n")
	return Ok
}

func (t *Toolchain) logf(format string, args ...any) {
	fmt.Fprintf(t.buildLog, format, args...)
}

// CompileAsync runs Compile on its own goroutine. The channel yields
// exactly one Result.
func (t *Toolchain) CompileAsync(ctx context.Context, sk *sketch.Sketch) <-chan Result {
	out := make(chan Result, 1)
	t.compiling.Add(1)
	go func() {
		defer t.compiling.Add(-1)
		out <- t.Compile(ctx, sk)
	}()
	return out
}

// Compiling reports whether a compile is in flight.
func (t *Toolchain) Compiling() bool { return t.compiling.Load() > 0 }

// ReadBuildLog moves up to len(p) pending log bytes into p. It never
// blocks and returns 0 when nothing new is available.
func (t *Toolchain) ReadBuildLog(p []byte) int { return t.buildLog.Drain(p) }

// DrainBuildLog moves every pending log byte into w.
func (t *Toolchain) DrainBuildLog(w io.Writer) (int64, error) { return t.buildLog.DrainAll(w) }

// LogReader exposes the build log as an io.Reader. Read returns (0, nil)
// until a compile has finished, and io.EOF once one has, none is in flight
// and the log is empty.
func (t *Toolchain) LogReader() io.Reader { return logReader{t} }

type logReader struct{ t *Toolchain }

func (r logReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	busy := r.t.Compiling() || r.t.finished.Load() == 0
	if n := r.t.ReadBuildLog(p); n > 0 {
		return n, nil
	}
	if busy {
		return 0, nil
	}
	// A compile may have finished between the checks; drain its tail.
	if n := r.t.ReadBuildLog(p); n > 0 {
		return n, nil
	}
	return 0, io.EOF
}
