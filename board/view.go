package board

import (
	"slices"
	"sync/atomic"

	"libsmce-go/types"
)

// arena holds the peripherals allocated for one configuration. It is live
// while the owning board's generation still equals gen.
type arena struct {
	gen uint64
	cur *atomic.Uint64

	pins   map[uint16]*pinSlot
	pinIDs []uint16
	uarts  []*uartSlot
	fbs    map[int]*fbSlot
	fbKeys []int
	sd     map[uint16]string
}

func newArena(cfg types.BoardConfig, gen uint64, cur *atomic.Uint64) *arena {
	a := &arena{
		gen:    gen,
		cur:    cur,
		pins:   make(map[uint16]*pinSlot, len(cfg.Pins)),
		pinIDs: append([]uint16(nil), cfg.Pins...),
		fbs:    make(map[int]*fbSlot, len(cfg.FrameBuffers)),
		sd:     make(map[uint16]string, len(cfg.SDCards)),
	}
	for _, id := range cfg.Pins {
		drv, ok := cfg.Driver(id)
		a.pins[id] = newPinSlot(id, drv, ok)
	}
	for _, u := range cfg.UartChannels {
		a.uarts = append(a.uarts, newUartSlot(u))
	}
	for _, fb := range cfg.FrameBuffers {
		a.fbs[fb.Key] = &fbSlot{spec: fb}
		a.fbKeys = append(a.fbKeys, fb.Key)
	}
	slices.Sort(a.fbKeys)
	for _, s := range cfg.SDCards {
		a.sd[s.CSPin] = s.RootDir
	}
	return a
}

func (a *arena) live() bool { return a != nil && a.cur.Load() == a.gen }

func (a *arena) flushUarts() {
	for _, u := range a.uarts {
		u.flush()
	}
}

func (a *arena) uart(i int) *uartSlot {
	if i < 0 || i >= len(a.uarts) {
		return nil
	}
	return a.uarts[i]
}

// View is a set of host handles on a board's peripherals. Copies share the
// same peripherals. Once the board is reset or reconfigured every handle
// obtained from the view reports absence.
type View struct {
	a *arena
}

// Valid reports whether the view still refers to the board's peripherals.
func (v View) Valid() bool { return v.a.live() }

// Clone returns a view sharing the same peripherals.
func (v View) Clone() View { return v }

// Pin returns the handle for pin id.
func (v View) Pin(id uint16) VirtualPin {
	if !v.Valid() {
		return VirtualPin{}
	}
	s, ok := v.a.pins[id]
	if !ok {
		return VirtualPin{}
	}
	return VirtualPin{a: v.a, s: s}
}

// Uart returns the handle for channel i, in configuration order.
func (v View) Uart(i int) VirtualUart {
	if !v.Valid() {
		return VirtualUart{}
	}
	s := v.a.uart(i)
	if s == nil {
		return VirtualUart{}
	}
	return VirtualUart{a: v.a, s: s}
}

// FrameBuffer returns the handle for key.
func (v View) FrameBuffer(key int) FrameBuffer {
	if !v.Valid() {
		return FrameBuffer{}
	}
	s, ok := v.a.fbs[key]
	if !ok {
		return FrameBuffer{}
	}
	return FrameBuffer{a: v.a, s: s}
}

// Pins lists the configured pin ids in configuration order.
func (v View) Pins() []uint16 {
	if !v.Valid() {
		return nil
	}
	return slices.Clone(v.a.pinIDs)
}

func (v View) UartCount() int {
	if !v.Valid() {
		return 0
	}
	return len(v.a.uarts)
}

// FrameBufferKeys lists the configured keys in ascending order.
func (v View) FrameBufferKeys() []int {
	if !v.Valid() {
		return nil
	}
	return slices.Clone(v.a.fbKeys)
}

// StorageRoot resolves an SD chip-select pin to its host directory.
func (v View) StorageRoot(csPin uint16) (string, bool) {
	if !v.Valid() {
		return "", false
	}
	root, ok := v.a.sd[csPin]
	return root, ok
}
