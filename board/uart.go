package board

import (
	"io"
	"sync"

	"tinygo.org/x/drivers"

	"libsmce-go/types"
	"libsmce-go/x/mathx"
	"libsmce-go/x/shmring"
)

// uartSlot backs one channel: rx carries host bytes to the program and tx
// carries program bytes to the host. Program writes are staged and moved
// into tx once the flushing threshold is reached or on the next tick.
type uartSlot struct {
	info types.UartChannel
	rx   *shmring.Ring
	tx   *shmring.Ring

	mu    sync.Mutex // serialises tx producers (program and tick)
	stage []byte
}

func newUartSlot(info types.UartChannel) *uartSlot {
	return &uartSlot{
		info:  info,
		rx:    shmring.New(info.RxBufferLength),
		tx:    shmring.New(info.TxBufferLength),
		stage: make([]byte, 0, info.TxBufferLength),
	}
}

// stageWrite accepts what will fit in tx once staged bytes are flushed.
func (s *uartSlot) stageWrite(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := mathx.Max(0, s.tx.Space()-len(s.stage))
	n := mathx.Min(len(p), room)
	s.stage = append(s.stage, p[:n]...)
	if len(s.stage) >= s.info.FlushingThreshold {
		s.flushLocked()
	}
	return n
}

func (s *uartSlot) flush() {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
}

func (s *uartSlot) flushLocked() {
	if len(s.stage) == 0 {
		return
	}
	n := s.tx.WriteFrom(s.stage)
	s.stage = s.stage[:copy(s.stage, s.stage[n:])]
}

// VirtualUart is a host handle on one UART channel. The zero value is absent.
type VirtualUart struct {
	a *arena
	s *uartSlot
}

func (u VirtualUart) Exists() bool { return u.s != nil && u.a.live() }

// Info returns the channel's configuration.
func (u VirtualUart) Info() types.UartChannel {
	if u.s == nil {
		return types.UartChannel{}
	}
	return u.s.info
}

// Readable is the number of program bytes waiting for the host.
func (u VirtualUart) Readable() int {
	if !u.Exists() {
		return 0
	}
	return u.s.tx.Available()
}

// Writable is the free space in the host-to-program queue.
func (u VirtualUart) Writable() int {
	if !u.Exists() {
		return 0
	}
	return u.s.rx.Space()
}

// MaxRead is the capacity of the program-to-host queue.
func (u VirtualUart) MaxRead() int {
	if !u.Exists() {
		return 0
	}
	return u.s.tx.Cap()
}

// MaxWrite is the capacity of the host-to-program queue.
func (u VirtualUart) MaxWrite() int {
	if !u.Exists() {
		return 0
	}
	return u.s.rx.Cap()
}

// WriteFrom enqueues as much of p as fits and returns the count.
// A short count is backpressure, not a fault.
func (u VirtualUart) WriteFrom(p []byte) int {
	if !u.Exists() {
		return 0
	}
	return u.s.rx.WriteFrom(p)
}

// ReadInto dequeues up to len(p) program bytes and returns the count.
func (u VirtualUart) ReadInto(p []byte) int {
	if !u.Exists() {
		return 0
	}
	return u.s.tx.ReadInto(p)
}

// Front peeks the next program byte. ok is false when Readable() == 0.
func (u VirtualUart) Front() (b byte, ok bool) {
	if !u.Exists() {
		return 0, false
	}
	return u.s.tx.Front()
}

// ReadableC signals when program bytes become available after the queue
// was empty. It is nil for an absent channel.
func (u VirtualUart) ReadableC() <-chan struct{} {
	if u.s == nil {
		return nil
	}
	return u.s.tx.Readable()
}

// Port adapts the channel to the io-style UART used by device drivers.
func (u VirtualUart) Port() drivers.UART { return uartPort{u} }

type uartPort struct{ u VirtualUart }

// Read returns (0, nil) when no bytes are waiting and io.EOF once the
// channel is gone.
func (p uartPort) Read(b []byte) (int, error) {
	if !p.u.Exists() {
		return 0, io.EOF
	}
	return p.u.ReadInto(b), nil
}

// Write reports io.ErrShortWrite when the queue could not take everything.
func (p uartPort) Write(b []byte) (int, error) {
	if !p.u.Exists() {
		return 0, io.ErrClosedPipe
	}
	n := p.u.WriteFrom(b)
	if n < len(b) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (p uartPort) Buffered() int { return p.u.Readable() }
