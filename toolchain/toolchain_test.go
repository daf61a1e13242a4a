package toolchain

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"libsmce-go/board"
	"libsmce-go/bus"
	"libsmce-go/errcode"
	"libsmce-go/sketch"
	"libsmce-go/types"
)

type fakeBuilder struct {
	checkErr error
	buildErr error
	prog     sketch.Program
	started  chan struct{}
	release  chan struct{}
	got      BuildRequest
}

func (f *fakeBuilder) CheckEnvironment(context.Context, string) (string, error) {
	return "/usr/bin/fake", f.checkErr
}

func (f *fakeBuilder) Build(ctx context.Context, req BuildRequest, log io.Writer) (sketch.Program, error) {
	f.got = req
	io.WriteString(log, "building\n")
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.prog, f.buildErr
}

func resdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("resources"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

var exit5 = sketch.ProgramFunc(func(context.Context, sketch.Device) int { return 5 })

func drainLog(tc *Toolchain) string {
	var sb strings.Builder
	buf := make([]byte, 7)
	for {
		n := tc.ReadBuildLog(buf)
		if n == 0 {
			return sb.String()
		}
		sb.Write(buf[:n])
	}
}

func TestResultCategories(t *testing.T) {
	cases := []struct {
		err  error
		want Result
	}{
		{nil, Ok},
		{errors.New("exploded"), Generic},
		{context.Canceled, Generic},
		{errcode.Wrap(errcode.BuildFailed, "build", errors.New("exit 2")), BuildFailed},
		{errcode.ConfigureFailed, ConfigureFailed},
		{errcode.NotCompiled, Generic},
		{errcode.OK, Generic},
	}
	for _, tc := range cases {
		if got := ResultOf(tc.err); got != tc.want {
			t.Errorf("ResultOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if Normalize(Result(77)) != Generic || Normalize(BuildFailed) != BuildFailed {
		t.Fatal("Normalize")
	}
	if Generic != 255 || Result(77).String() != "error" || ResdirEmpty.String() != "resdir_empty" {
		t.Fatal("result encoding")
	}
	if Ok.Err() != nil || !errors.Is(BuildFailed.Err(), errcode.BuildFailed) {
		t.Fatal("Err")
	}
}

func TestCheckSuitableEnvironment(t *testing.T) {
	dir := resdir(t)
	file := filepath.Join(dir, "README")
	empty := t.TempDir()

	cases := []struct {
		name string
		dir  string
		b    *fakeBuilder
		want Result
	}{
		{"absent", filepath.Join(dir, "nope"), &fakeBuilder{}, ResdirAbsent},
		{"file", file, &fakeBuilder{}, ResdirFile},
		{"empty", empty, &fakeBuilder{}, ResdirEmpty},
		{"no tool", dir, &fakeBuilder{checkErr: errcode.New(errcode.ToolNotFound, "check", "")}, ToolNotFound},
		{"odd failure", dir, &fakeBuilder{checkErr: errors.New("weird")}, Generic},
		{"ok", dir, &fakeBuilder{}, Ok},
	}
	for _, tc := range cases {
		tc := tc
		tch := New(tc.dir, WithBuilder(tc.b))
		if got := tch.CheckSuitableEnvironment(context.Background()); got != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
	tch := New(dir, WithBuilder(&fakeBuilder{}))
	if tch.ToolPath() != "" {
		t.Fatal("tool path set before check")
	}
	tch.CheckSuitableEnvironment(context.Background())
	if tch.ToolPath() != "/usr/bin/fake" || tch.ResourceDir() != dir {
		t.Fatalf("ToolPath=%q ResourceDir=%q", tch.ToolPath(), tch.ResourceDir())
	}
}

func TestUnknownBoardFailsWithLog(t *testing.T) {
	b := &fakeBuilder{prog: exit5}
	tc := New(resdir(t), WithBuilder(b))
	sk := sketch.New("blink.ino", types.SketchConfig{FQBN: "nobody:nothing:never"})

	if res := tc.Compile(context.Background(), sk); res == Ok {
		t.Fatal("unknown board compiled")
	} else if res != ConfigureFailed {
		t.Fatalf("res = %s", res)
	}
	if sk.IsCompiled() {
		t.Fatal("failed compile marked sketch compiled")
	}
	if log := drainLog(tc); !strings.Contains(log, "nobody:nothing:never") {
		t.Fatalf("log = %q", log)
	}
	if n := tc.ReadBuildLog(make([]byte, 16)); n != 0 {
		t.Fatalf("log not drained: %d more bytes", n)
	}
}

func TestExtraBoardURIsBypassProfiles(t *testing.T) {
	b := &fakeBuilder{prog: exit5}
	tc := New(resdir(t), WithBuilder(b))
	sk := sketch.New("blink.ino", types.SketchConfig{
		FQBN:           "vendor:arch:custom",
		ExtraBoardURIs: []string{"https://example.invalid/package_index.json"},
	})
	if res := tc.Compile(context.Background(), sk); res != Ok {
		t.Fatalf("res = %s", res)
	}
	if b.got.Profile.FQBN != "" || b.got.Config.FQBN != "vendor:arch:custom" {
		t.Fatalf("request = %+v", b.got)
	}
	var sb strings.Builder
	n, err := tc.DrainBuildLog(&sb)
	if err != nil || n != int64(sb.Len()) || !strings.HasSuffix(sb.String(), "-- Build succeeded\n") {
		t.Fatalf("drained %d, %v: %q", n, err, sb.String())
	}
	if n, _ := tc.DrainBuildLog(io.Discard); n != 0 {
		t.Fatalf("second drain moved %d bytes", n)
	}
}

func TestBuildErrorsAreCategorized(t *testing.T) {
	cases := []struct {
		err  error
		want Result
	}{
		{errors.New("builder crashed in a novel way"), Generic},
		{errcode.Wrap(errcode.ConfigureFailed, "configure", errors.New("exit 1")), ConfigureFailed},
		{errcode.New(errcode.SketchInvalid, "build", "missing"), SketchInvalid},
	}
	for _, c := range cases {
		tc := New(resdir(t), WithBuilder(&fakeBuilder{buildErr: c.err}))
		sk := sketch.New("blink.ino", types.SketchConfig{FQBN: "smce:sim:host"})
		if got := tc.Compile(context.Background(), sk); got != c.want {
			t.Errorf("%v: got %s want %s", c.err, got, c.want)
		}
	}
	tc := New(resdir(t), WithBuilder(&fakeBuilder{}))
	if got := tc.Compile(context.Background(), sketch.New("x", types.SketchConfig{FQBN: "smce:sim:host"})); got != Generic {
		t.Fatalf("nil program: %s", got)
	}
	if got := tc.Compile(context.Background(), nil); got != SketchInvalid {
		t.Fatalf("nil sketch: %s", got)
	}
}

func TestCompileAsyncStreamsLog(t *testing.T) {
	b := &fakeBuilder{prog: exit5, started: make(chan struct{}), release: make(chan struct{})}
	tc := New(resdir(t), WithBuilder(b))
	sk := sketch.New("blink.ino", types.SketchConfig{FQBN: "smce:sim:host"})

	done := tc.CompileAsync(context.Background(), sk)
	<-b.started
	if !tc.Compiling() {
		t.Fatal("not compiling while builder blocked")
	}
	if log := drainLog(tc); !strings.Contains(log, "building") {
		t.Fatalf("partial log = %q", log)
	}
	r := tc.LogReader()
	if n, err := r.Read(make([]byte, 8)); n != 0 || err != nil {
		t.Fatalf("Read while compiling = %d, %v", n, err)
	}
	close(b.release)

	select {
	case res := <-done:
		if res != Ok || !sk.IsCompiled() {
			t.Fatalf("res=%s compiled=%v", res, sk.IsCompiled())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("compile did not finish")
	}
	rest, err := io.ReadAll(r)
	if err != nil || !strings.Contains(string(rest), "Build succeeded") {
		t.Fatalf("tail = %q, %v", rest, err)
	}
}

func TestCompiledSketchRunsOnBoard(t *testing.T) {
	reg := NewProgramRegistry()
	reg.Register("blink", sketch.Loop(nil, func(dev sketch.Device) bool {
		dev.DigitalWrite(0, !dev.DigitalRead(0))
		dev.UartWrite(0, []byte("tick\n"))
		return false
	}))
	bs := bus.NewBus(4)
	sub := bs.NewConnection("test").Subscribe(bus.T(TopicBuild, bus.Any))
	tc := New(resdir(t), WithBuilder(reg), WithBus(bs))
	sk := sketch.New("sketches/blink.ino", types.SketchConfig{FQBN: "smce:sim:host"})
	if res := tc.Compile(context.Background(), sk); res != Ok {
		t.Fatalf("compile: %s\n%s", res, drainLog(tc))
	}
	select {
	case m := <-sub.Channel():
		if rep := m.Payload.(types.BuildReport); !rep.OK || rep.Sketch != sk.UUID().Hex() {
			t.Fatalf("report %+v", rep)
		}
	case <-time.After(time.Second):
		t.Fatal("no build report")
	}

	bd := board.New()
	cfg := types.BoardConfig{
		Pins:         []uint16{0},
		GpioDrivers:  []types.GpioDriver{{PinID: 0, Digital: &types.DigitalDriver{Read: true, Write: true}}},
		UartChannels: []types.UartChannel{types.DefaultUartChannel()},
	}
	if err := bd.Launch(cfg, sk); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !bd.Tick().Exited {
		if time.Now().After(deadline) {
			t.Fatal("program did not exit")
		}
		time.Sleep(time.Millisecond)
	}
	v, _ := bd.View()
	out := make([]byte, 16)
	n := v.Uart(0).ReadInto(out)
	if string(out[:n]) != "tick\n" || !v.Pin(0).DigitalRead() {
		t.Fatalf("uart=%q pin=%v", out[:n], v.Pin(0).DigitalRead())
	}
}

func TestProgramRegistryUnknownSource(t *testing.T) {
	reg := NewProgramRegistry()
	tc := New(resdir(t), WithBuilder(reg))
	if res := tc.Compile(context.Background(), sketch.New("ghost.ino", types.SketchConfig{FQBN: "smce:sim:host"})); res != SketchInvalid {
		t.Fatalf("res = %s", res)
	}
	reg.Register("dup", exit5)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	reg.Register("dup", exit5)
}

func TestLogReaderWaitsForFirstCompile(t *testing.T) {
	tc := New(resdir(t), WithBuilder(&fakeBuilder{prog: exit5}))
	if n, err := tc.LogReader().Read(make([]byte, 8)); n != 0 || err != nil {
		t.Fatalf("Read before any compile = %d, %v", n, err)
	}

	got := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(tc.LogReader())
		got <- string(b)
	}()
	time.Sleep(20 * time.Millisecond)

	sk := sketch.New("blink.ino", types.SketchConfig{FQBN: "arduino:avr:uno"})
	if res := tc.Compile(context.Background(), sk); res != Ok {
		t.Fatalf("compile: %s", res)
	}
	select {
	case log := <-got:
		for _, want := range []string{"-- Compiling blink.ino", "building", "-- Build succeeded"} {
			if !strings.Contains(log, want) {
				t.Errorf("log missing %q: %q", want, log)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not reach EOF after the compile")
	}
	if n := tc.ReadBuildLog(make([]byte, 8)); n != 0 {
		t.Fatalf("%d bytes left behind", n)
	}
}
