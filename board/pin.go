package board

import (
	"sync/atomic"

	"libsmce-go/types"
)

// pinSlot backs one configured pin. The digital and analog lines are
// independent words; each is read and written atomically.
type pinSlot struct {
	id      uint16
	digital *types.DigitalDriver
	analog  *types.AnalogDriver

	dval atomic.Bool
	aval atomic.Uint32
}

func newPinSlot(id uint16, drv types.GpioDriver, ok bool) *pinSlot {
	s := &pinSlot{id: id}
	if !ok {
		return s
	}
	if drv.Digital != nil {
		d := *drv.Digital
		s.digital = &d
	}
	if drv.Analog != nil {
		a := *drv.Analog
		s.analog = &a
	}
	return s
}

func (s *pinSlot) driven() bool { return s.digital != nil || s.analog != nil }

func (s *pinSlot) digitalRead() bool {
	if s.digital == nil || !s.digital.Read {
		return false
	}
	return s.dval.Load()
}

func (s *pinSlot) digitalWrite(v bool) {
	if s.digital == nil || !s.digital.Write {
		return
	}
	s.dval.Store(v)
}

func (s *pinSlot) analogRead() uint16 {
	if s.analog == nil || !s.analog.Read {
		return 0
	}
	return uint16(s.aval.Load())
}

func (s *pinSlot) analogWrite(v uint16) {
	if s.analog == nil || !s.analog.Write {
		return
	}
	s.aval.Store(uint32(v))
}

// VirtualPin is a host handle on one pin. The zero value is absent.
// Writes without the write capability are dropped and reads without the
// read capability yield false or 0.
type VirtualPin struct {
	a *arena
	s *pinSlot
}

// Exists reports whether the pin is in the current topology with at least
// one GPIO driver. A configured pin without a driver is absent.
func (p VirtualPin) Exists() bool { return p.s != nil && p.s.driven() && p.a.live() }

func (p VirtualPin) ID() uint16 {
	if p.s == nil {
		return 0
	}
	return p.s.id
}

func (p VirtualPin) IsDigital() bool { return p.Exists() && p.s.digital != nil }
func (p VirtualPin) IsAnalog() bool  { return p.Exists() && p.s.analog != nil }

// DigitalDriver returns the configured digital capabilities.
func (p VirtualPin) DigitalDriver() (types.DigitalDriver, bool) {
	if !p.IsDigital() {
		return types.DigitalDriver{}, false
	}
	return *p.s.digital, true
}

// AnalogDriver returns the configured analog capabilities.
func (p VirtualPin) AnalogDriver() (types.AnalogDriver, bool) {
	if !p.IsAnalog() {
		return types.AnalogDriver{}, false
	}
	return *p.s.analog, true
}

func (p VirtualPin) DigitalRead() bool {
	if !p.Exists() {
		return false
	}
	return p.s.digitalRead()
}

func (p VirtualPin) DigitalWrite(v bool) {
	if p.Exists() {
		p.s.digitalWrite(v)
	}
}

func (p VirtualPin) AnalogRead() uint16 {
	if !p.Exists() {
		return 0
	}
	return p.s.analogRead()
}

func (p VirtualPin) AnalogWrite(v uint16) {
	if p.Exists() {
		p.s.analogWrite(v)
	}
}
