package types

import (
	"github.com/pkg/errors"

	"libsmce-go/errcode"
)

// ------------------------
// Board topology
// ------------------------

// DigitalDriver declares the digital line capabilities of a pin.
type DigitalDriver struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// AnalogDriver declares the analog line capabilities of a pin.
type AnalogDriver struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// GpioDriver attaches optional digital and analog drivers to a pin.
type GpioDriver struct {
	PinID   uint16         `json:"pin_id"`
	Digital *DigitalDriver `json:"digital,omitempty"`
	Analog  *AnalogDriver  `json:"analog,omitempty"`
}

// UartChannel describes one serial channel and its queue sizes.
type UartChannel struct {
	RxPinOverride     *uint16 `json:"rx_pin_override,omitempty"`
	TxPinOverride     *uint16 `json:"tx_pin_override,omitempty"`
	BaudRate          uint32  `json:"baud_rate"`
	RxBufferLength    int     `json:"rx_buffer_length"`
	TxBufferLength    int     `json:"tx_buffer_length"`
	FlushingThreshold int     `json:"flushing_threshold"`
}

// DefaultUartChannel is 9600 baud with 64 byte queues, flushing every write.
func DefaultUartChannel() UartChannel {
	return UartChannel{
		BaudRate:       9600,
		RxBufferLength: 64,
		TxBufferLength: 64,
	}
}

// SecureDigitalStorage maps a chip-select pin to a host directory.
type SecureDigitalStorage struct {
	CSPin   uint16 `json:"cspin"`
	RootDir string `json:"root_dir"`
}

// FrameBufferDirection says which side produces frames.
type FrameBufferDirection uint8

const (
	// FrameBufferIn: the host writes frames, the program reads them (camera).
	FrameBufferIn FrameBufferDirection = iota
	// FrameBufferOut: the program writes frames, the host reads them (display).
	FrameBufferOut
)

func (d FrameBufferDirection) String() string {
	if d == FrameBufferOut {
		return "out"
	}
	return "in"
}

func (d FrameBufferDirection) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *FrameBufferDirection) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"in"`, `0`:
		*d = FrameBufferIn
	case `"out"`, `1`:
		*d = FrameBufferOut
	default:
		return errors.Wrapf(errcode.InvalidConfig, "frame buffer direction %s", b)
	}
	return nil
}

// FrameBufferSpec declares a frame buffer slot.
type FrameBufferSpec struct {
	Key       int                  `json:"key"`
	Direction FrameBufferDirection `json:"direction"`
}

// BoardConfig is the declarative hardware topology of a board.
type BoardConfig struct {
	Pins         []uint16               `json:"pins"`
	GpioDrivers  []GpioDriver           `json:"gpio_drivers,omitempty"`
	UartChannels []UartChannel          `json:"uart_channels,omitempty"`
	SDCards      []SecureDigitalStorage `json:"sd_cards,omitempty"`
	FrameBuffers []FrameBufferSpec      `json:"frame_buffers,omitempty"`
}

// Validate checks pin uniqueness and that every pin reference resolves.
// Errors carry errcode.DuplicatePin, errcode.UnknownPin or errcode.InvalidConfig.
func (c BoardConfig) Validate() error {
	pins := make(map[uint16]struct{}, len(c.Pins))
	for _, p := range c.Pins {
		if _, dup := pins[p]; dup {
			return errors.Wrapf(errcode.DuplicatePin, "pin %d", p)
		}
		pins[p] = struct{}{}
	}
	known := func(p uint16) bool { _, ok := pins[p]; return ok }

	drivers := make(map[uint16]struct{}, len(c.GpioDrivers))
	for i, d := range c.GpioDrivers {
		if !known(d.PinID) {
			return errors.Wrapf(errcode.UnknownPin, "gpio driver %d: pin %d", i, d.PinID)
		}
		if _, dup := drivers[d.PinID]; dup {
			return errors.Wrapf(errcode.DuplicatePin, "gpio driver %d: pin %d already driven", i, d.PinID)
		}
		drivers[d.PinID] = struct{}{}
	}

	for i, u := range c.UartChannels {
		if u.RxPinOverride != nil && !known(*u.RxPinOverride) {
			return errors.Wrapf(errcode.UnknownPin, "uart %d: rx pin %d", i, *u.RxPinOverride)
		}
		if u.TxPinOverride != nil && !known(*u.TxPinOverride) {
			return errors.Wrapf(errcode.UnknownPin, "uart %d: tx pin %d", i, *u.TxPinOverride)
		}
		if u.RxBufferLength <= 0 || u.TxBufferLength <= 0 {
			return errors.Wrapf(errcode.InvalidConfig, "uart %d: buffer lengths must be positive", i)
		}
		if u.FlushingThreshold < 0 || u.FlushingThreshold > u.TxBufferLength {
			return errors.Wrapf(errcode.InvalidConfig, "uart %d: flushing threshold %d", i, u.FlushingThreshold)
		}
	}

	for i, sd := range c.SDCards {
		if !known(sd.CSPin) {
			return errors.Wrapf(errcode.UnknownPin, "sd card %d: cs pin %d", i, sd.CSPin)
		}
	}

	keys := make(map[int]struct{}, len(c.FrameBuffers))
	for _, fb := range c.FrameBuffers {
		if _, dup := keys[fb.Key]; dup {
			return errors.Wrapf(errcode.InvalidConfig, "frame buffer key %d repeated", fb.Key)
		}
		keys[fb.Key] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so later caller mutation cannot reach a board.
func (c BoardConfig) Clone() BoardConfig {
	out := BoardConfig{
		Pins:         append([]uint16(nil), c.Pins...),
		GpioDrivers:  make([]GpioDriver, len(c.GpioDrivers)),
		UartChannels: make([]UartChannel, len(c.UartChannels)),
		SDCards:      append([]SecureDigitalStorage(nil), c.SDCards...),
		FrameBuffers: append([]FrameBufferSpec(nil), c.FrameBuffers...),
	}
	for i, d := range c.GpioDrivers {
		if d.Digital != nil {
			v := *d.Digital
			d.Digital = &v
		}
		if d.Analog != nil {
			v := *d.Analog
			d.Analog = &v
		}
		out.GpioDrivers[i] = d
	}
	for i, u := range c.UartChannels {
		if u.RxPinOverride != nil {
			v := *u.RxPinOverride
			u.RxPinOverride = &v
		}
		if u.TxPinOverride != nil {
			v := *u.TxPinOverride
			u.TxPinOverride = &v
		}
		out.UartChannels[i] = u
	}
	return out
}

// Driver returns the GPIO driver for pin, if any.
func (c BoardConfig) Driver(pin uint16) (GpioDriver, bool) {
	for _, d := range c.GpioDrivers {
		if d.PinID == pin {
			return d, true
		}
	}
	return GpioDriver{}, false
}
