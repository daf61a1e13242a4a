package sketch

import (
	"context"
	"testing"
	"time"

	"libsmce-go/types"
)

func TestNewSketchIsUncompiled(t *testing.T) {
	cfg := types.SketchConfig{FQBN: "arduino:avr:nano", ExtraCompileDefs: []string{"A=1"}}
	s := New("blink.ino", cfg)
	if s.IsCompiled() || s.Program() != nil {
		t.Fatal("fresh sketch reports compiled")
	}
	if s.Source() != "blink.ino" || s.Config().FQBN != "arduino:avr:nano" {
		t.Fatalf("accessors: %q %+v", s.Source(), s.Config())
	}
	cfg.ExtraCompileDefs[0] = "B=2"
	if s.Config().ExtraCompileDefs[0] != "A=1" {
		t.Fatal("sketch config aliases caller slice")
	}
	if New("blink.ino", cfg).UUID() == s.UUID() {
		t.Fatal("sketches share an identifier")
	}
}

func TestBindMarksCompiled(t *testing.T) {
	s := New("x", types.SketchConfig{})
	p := ProgramFunc(func(context.Context, Device) int { return 7 })
	s.Bind(p)
	if !s.IsCompiled() || s.Program() == nil {
		t.Fatal("Bind did not mark compiled")
	}
	if code := s.Program().Run(context.Background(), nil); code != 7 {
		t.Fatalf("code = %d", code)
	}
	s.Bind(nil)
	if s.IsCompiled() {
		t.Fatal("Bind(nil) left sketch compiled")
	}
}

type closingProgram struct {
	ProgramFunc
	closed int
}

func (c *closingProgram) Close(context.Context) error { c.closed++; return nil }

func TestBindClosesReplacedProgram(t *testing.T) {
	s := New("x", types.SketchConfig{})
	exit := ProgramFunc(func(context.Context, Device) int { return 0 })
	first := &closingProgram{ProgramFunc: exit}
	second := &closingProgram{ProgramFunc: exit}

	s.Bind(first)
	s.Bind(first)
	if first.closed != 0 {
		t.Fatal("rebinding the same program closed it")
	}
	s.Bind(second)
	if first.closed != 1 || second.closed != 0 {
		t.Fatalf("closed first=%d second=%d", first.closed, second.closed)
	}
	s.Bind(nil)
	if second.closed != 1 || s.IsCompiled() {
		t.Fatalf("Bind(nil) closed=%d compiled=%v", second.closed, s.IsCompiled())
	}
	s.Bind(exit)
	s.Bind(nil)
}

func TestLoopStopsOnFalseOrCancel(t *testing.T) {
	n := 0
	setupCalls := 0
	p := Loop(func(Device) { setupCalls++ }, func(Device) bool { n++; return n < 3 })
	if code := p.Run(context.Background(), nil); code != 0 || n != 3 || setupCalls != 1 {
		t.Fatalf("code=%d n=%d setup=%d", code, n, setupCalls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- Loop(nil, func(Device) bool { time.Sleep(time.Millisecond); return true }).Run(ctx, nil)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop ignored cancellation")
	}
}

func TestPixelFormatSizes(t *testing.T) {
	if RGB888.BytesPerPixel() != 3 || RGB444.BytesPerPixel() != 2 {
		t.Fatal("bytes per pixel")
	}
}
