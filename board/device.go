package board

import (
	"context"
	"sync"
	"time"

	"libsmce-go/sketch"
	"libsmce-go/x/logbuf"
)

// gate blocks program-side calls while a board is suspended.
type gate struct {
	mu   sync.Mutex
	open chan struct{} // closed while running
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open)
	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
	g.mu.Unlock()
}

func (g *gate) resume() {
	g.mu.Lock()
	select {
	case <-g.open:
	default:
		close(g.open)
	}
	g.mu.Unlock()
}

// wait returns false once ctx is done.
func (g *gate) wait(ctx context.Context) bool {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	select {
	case <-ch:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}

// run is one execution of a program on a board.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan int // single-shot exit code
	gate   *gate
	start  time.Time
}

func newRun(parent context.Context) *run {
	ctx, cancel := context.WithCancel(parent)
	return &run{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan int, 1),
		gate:   newGate(),
		start:  time.Now(),
	}
}

// device is the sketch.Device handed to a running program.
type device struct {
	a   *arena
	r   *run
	log *logbuf.Buffer
}

var _ sketch.Device = (*device)(nil)

func (d *device) enter() bool { return d.r.gate.wait(d.r.ctx) && d.a.live() }

func (d *device) pin(id uint16) *pinSlot {
	if !d.enter() {
		return nil
	}
	return d.a.pins[id]
}

func (d *device) DigitalRead(id uint16) bool {
	if s := d.pin(id); s != nil {
		return s.digitalRead()
	}
	return false
}

func (d *device) DigitalWrite(id uint16, v bool) {
	if s := d.pin(id); s != nil {
		s.digitalWrite(v)
	}
}

func (d *device) AnalogRead(id uint16) uint16 {
	if s := d.pin(id); s != nil {
		return s.analogRead()
	}
	return 0
}

func (d *device) AnalogWrite(id uint16, v uint16) {
	if s := d.pin(id); s != nil {
		s.analogWrite(v)
	}
}

func (d *device) uart(ch int) *uartSlot {
	if !d.enter() {
		return nil
	}
	return d.a.uart(ch)
}

func (d *device) UartAvailable(ch int) int {
	if s := d.uart(ch); s != nil {
		return s.rx.Available()
	}
	return 0
}

func (d *device) UartRead(ch int, p []byte) int {
	if s := d.uart(ch); s != nil {
		return s.rx.ReadInto(p)
	}
	return 0
}

func (d *device) UartWrite(ch int, p []byte) int {
	if s := d.uart(ch); s != nil {
		return s.stageWrite(p)
	}
	return 0
}

func (d *device) fb(key int) *fbSlot {
	if !d.enter() {
		return nil
	}
	return d.a.fbs[key]
}

func (d *device) FrameBufferSetup(key int, f sketch.FrameFormat) bool {
	if s := d.fb(key); s != nil {
		return s.setup(f)
	}
	return false
}

func (d *device) FrameBufferWrite(key int, pf sketch.PixelFormat, p []byte) bool {
	if s := d.fb(key); s != nil {
		return s.write(pf, p)
	}
	return false
}

func (d *device) FrameBufferRead(key int, dst []byte) bool {
	if s := d.fb(key); s != nil {
		return s.read(dst)
	}
	return false
}

func (d *device) StorageRoot(cs uint16) (string, bool) {
	if !d.enter() {
		return "", false
	}
	root, ok := d.a.sd[cs]
	return root, ok
}

func (d *device) Millis() int64 { return time.Since(d.r.start).Milliseconds() }

// Delay sleeps for dur or until the run ends.
func (d *device) Delay(dur time.Duration) {
	if !d.enter() {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-d.r.ctx.Done():
	}
}

func (d *device) Log(p []byte) {
	if d.r.ctx.Err() == nil {
		d.log.Write(p)
	}
}
