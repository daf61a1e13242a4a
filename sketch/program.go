package sketch

import (
	"context"
	"time"
)

// PixelFormat selects the byte encoding of frame buffer payloads.
type PixelFormat uint8

const (
	RGB888 PixelFormat = iota // 3 bytes per pixel
	RGB444                    // 2 bytes per pixel, 0000rrrr ggggbbbb
)

// BytesPerPixel is 3 for RGB888 and 2 for RGB444.
func (f PixelFormat) BytesPerPixel() int {
	if f == RGB444 {
		return 2
	}
	return 3
}

// FrameFormat is what a program declares when it brings up a frame buffer.
type FrameFormat struct {
	Width, Height uint16
	Freq          uint8 // frames per second
	HFlip, VFlip  bool
}

// Device is the board as seen from inside a running program.
// Every call blocks while the board is suspended and becomes inert
// once the run has been terminated.
type Device interface {
	DigitalRead(pin uint16) bool
	DigitalWrite(pin uint16, v bool)
	AnalogRead(pin uint16) uint16
	AnalogWrite(pin uint16, v uint16)

	// UartAvailable is the number of bytes the host has queued for channel ch.
	UartAvailable(ch int) int
	UartRead(ch int, p []byte) int
	// UartWrite stages p for the host and returns how much was accepted.
	UartWrite(ch int, p []byte) int

	FrameBufferSetup(key int, f FrameFormat) bool
	FrameBufferWrite(key int, f PixelFormat, p []byte) bool
	FrameBufferRead(key int, dst []byte) bool

	// StorageRoot resolves the host directory behind an SD chip-select pin.
	StorageRoot(csPin uint16) (string, bool)

	Millis() int64
	Delay(d time.Duration)
	// Log appends to the board's runtime log.
	Log(p []byte)
}

// Program is an executable sketch artifact.
type Program interface {
	// Run executes until the program exits, returning its exit code,
	// or until ctx is cancelled.
	Run(ctx context.Context, dev Device) int
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, dev Device) int

func (f ProgramFunc) Run(ctx context.Context, dev Device) int { return f(ctx, dev) }

// Loop builds an Arduino-style program: setup once, then loop until it
// reports false or ctx is done. A nil setup is skipped.
func Loop(setup func(Device), loop func(Device) bool) Program {
	return ProgramFunc(func(ctx context.Context, dev Device) int {
		if setup != nil {
			setup(dev)
		}
		for ctx.Err() == nil {
			if !loop(dev) {
				return 0
			}
		}
		return 0
	})
}
