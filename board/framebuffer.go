package board

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/pixel"

	"libsmce-go/errcode"
	"libsmce-go/sketch"
	"libsmce-go/types"
	"libsmce-go/x/timex"
)

type frame = pixel.Image[pixel.RGB888]

// fbSlot backs one frame buffer. The geometry is set by the program and
// every accepted payload replaces the current frame with one pointer swap.
type fbSlot struct {
	spec   types.FrameBufferSpec
	format atomic.Pointer[sketch.FrameFormat]
	frame  atomic.Pointer[frame]
	frames atomic.Uint64
}

func (s *fbSlot) setup(f sketch.FrameFormat) bool {
	if f.Width > math.MaxInt16 || f.Height > math.MaxInt16 {
		return false
	}
	s.format.Store(&f)
	s.frame.Store(nil)
	return true
}

func (s *fbSlot) dims() (w, h int, ok bool) {
	f := s.format.Load()
	if f == nil || f.Width == 0 || f.Height == 0 {
		return 0, 0, false
	}
	return int(f.Width), int(f.Height), true
}

// write validates the payload length before touching the current frame.
func (s *fbSlot) write(pf sketch.PixelFormat, p []byte) bool {
	w, h, ok := s.dims()
	if !ok || len(p) != w*h*pf.BytesPerPixel() {
		return false
	}
	var img frame
	switch pf {
	case sketch.RGB888:
		img = pixel.NewImageFromBytes[pixel.RGB888](w, h, bytes.Clone(p))
	case sketch.RGB444:
		img = pixel.NewImage[pixel.RGB888](w, h)
		for i := 0; i < w*h; i++ {
			c := pixel.RGB444BE(uint16(p[2*i]&0x0f)<<8 | uint16(p[2*i+1])).RGBA()
			img.Set(i%w, i/w, pixel.NewRGB888(c.R, c.G, c.B))
		}
	default:
		return false
	}
	s.frame.Store(&img)
	s.frames.Add(1)
	return true
}

func (s *fbSlot) read(dst []byte) bool {
	img := s.frame.Load()
	if img == nil {
		return false
	}
	w, h := img.Size()
	if len(dst) != w*h*3 {
		return false
	}
	copy(dst, img.RawBuffer())
	return true
}

// FrameBuffer is a host handle on one frame buffer slot. The zero value is
// absent. Width, height and rate stay zero until the program sets them up.
type FrameBuffer struct {
	a *arena
	s *fbSlot
}

func (f FrameBuffer) Exists() bool { return f.s != nil && f.a.live() }

func (f FrameBuffer) Key() int {
	if f.s == nil {
		return 0
	}
	return f.s.spec.Key
}

func (f FrameBuffer) Direction() types.FrameBufferDirection {
	if f.s == nil {
		return types.FrameBufferIn
	}
	return f.s.spec.Direction
}

func (f FrameBuffer) format() sketch.FrameFormat {
	if !f.Exists() {
		return sketch.FrameFormat{}
	}
	if p := f.s.format.Load(); p != nil {
		return *p
	}
	return sketch.FrameFormat{}
}

func (f FrameBuffer) NeedsHorizontalFlip() bool { return f.format().HFlip }
func (f FrameBuffer) NeedsVerticalFlip() bool   { return f.format().VFlip }
func (f FrameBuffer) Width() uint16             { return f.format().Width }
func (f FrameBuffer) Height() uint16            { return f.format().Height }
func (f FrameBuffer) Freq() uint8               { return f.format().Freq }

// Period is the frame interval implied by Freq, zero when unpaced.
func (f FrameBuffer) Period() time.Duration {
	return timex.Period(uint32(f.Freq()))
}

// Frames counts accepted payloads since setup.
func (f FrameBuffer) Frames() uint64 {
	if !f.Exists() {
		return 0
	}
	return f.s.frames.Load()
}

// WriteRGB888 replaces the frame. It returns false, leaving the frame
// unchanged, unless len(p) == width*height*3.
func (f FrameBuffer) WriteRGB888(p []byte) bool {
	return f.Exists() && f.s.write(sketch.RGB888, p)
}

// WriteRGB444 replaces the frame from 2-byte 0000rrrr ggggbbbb pixels.
func (f FrameBuffer) WriteRGB444(p []byte) bool {
	return f.Exists() && f.s.write(sketch.RGB444, p)
}

// ReadRGB888 copies the latest frame into dst, which must be exactly
// width*height*3 bytes.
func (f FrameBuffer) ReadRGB888(dst []byte) bool {
	return f.Exists() && f.s.read(dst)
}

// Image returns the latest frame, or nil before the first one.
func (f FrameBuffer) Image() image.Image {
	if !f.Exists() {
		return nil
	}
	img := f.s.frame.Load()
	if img == nil {
		return nil
	}
	return frameImage{*img}
}

type frameImage struct{ img frame }

func (i frameImage) ColorModel() color.Model { return color.RGBAModel }

func (i frameImage) Bounds() image.Rectangle {
	w, h := i.img.Size()
	return image.Rect(0, 0, w, h)
}

func (i frameImage) At(x, y int) color.Color {
	w, h := i.img.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return color.RGBA{}
	}
	return i.img.Get(x, y).RGBA()
}

// Displayer returns a drawing surface whose Display call publishes the
// drawn frame, for host code that feeds camera-style input buffers.
func (f FrameBuffer) Displayer() drivers.Displayer { return &fbDisplay{fb: f} }

type fbDisplay struct {
	fb   FrameBuffer
	mu   sync.Mutex
	back frame
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

// surface reallocates the back buffer when the geometry changed.
func (d *fbDisplay) surface() (frame, bool) {
	w, h := int(d.fb.Width()), int(d.fb.Height())
	if w == 0 || h == 0 {
		return frame{}, false
	}
	if bw, bh := d.back.Size(); bw != w || bh != h {
		d.back = pixel.NewImage[pixel.RGB888](w, h)
	}
	return d.back, true
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.surface()
	if !ok {
		return
	}
	if w, h := img.Size(); x < 0 || y < 0 || int(x) >= w || int(y) >= h {
		return
	}
	img.Set(int(x), int(y), pixel.NewRGB888(c.R, c.G, c.B))
}

func (d *fbDisplay) Display() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.surface()
	if !ok || !d.fb.WriteRGB888(img.RawBuffer()) {
		return errcode.New(errcode.InvalidState, "display", "frame buffer not set up")
	}
	return nil
}
