// Package hostvm runs WebAssembly sketches. A guest imports its board
// from the host module "smce" and exports an optional setup and a loop.
package hostvm

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"libsmce-go/sketch"
	"libsmce-go/x/mathx"
)

// HostModule is the import namespace guests link against.
const HostModule = "smce"

// CrashExitCode is returned when the guest traps.
const CrashExitCode = -1

// Framebuffer setup flags.
const (
	FlagHFlip = 1 << iota
	FlagVFlip
)

type Option func(*config)

type config struct {
	log *zap.Logger
}

func WithLogger(l *zap.Logger) Option { return func(c *config) { c.log = l } }

// Program is a compiled guest. It is safe to Run concurrently; every run
// gets its own instance and memory.
type Program struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	hasSetup bool
	log      *zap.Logger
}

var _ sketch.Program = (*Program)(nil)

// Load compiles wasm and links it against the host module.
func Load(ctx context.Context, wasm []byte, opts ...Option) (*Program, error) {
	c := config{}
	for _, o := range opts {
		o(&c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := hostModule(rt).Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(err, "instantiate host module")
	}
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(err, "compile guest")
	}
	exports := compiled.ExportedFunctions()
	if !isVoid(exports["loop"]) {
		rt.Close(ctx)
		return nil, errors.New("guest must export loop: func()")
	}
	setup, hasSetup := exports["setup"]
	if hasSetup && !isVoid(setup) {
		rt.Close(ctx)
		return nil, errors.New("guest setup must be func()")
	}
	c.log.Debug("guest loaded", zap.Int("exports", len(exports)), zap.Bool("setup", hasSetup))
	return &Program{rt: rt, compiled: compiled, hasSetup: hasSetup, log: c.log}, nil
}

func isVoid(def api.FunctionDefinition) bool {
	return def != nil && len(def.ParamTypes()) == 0 && len(def.ResultTypes()) == 0
}

// Close releases the runtime. Runs in flight are closed with it.
func (p *Program) Close(ctx context.Context) error { return p.rt.Close(ctx) }

// Run instantiates the guest, calls setup once and loop until the guest
// exits, traps or ctx is done.
func (p *Program) Run(ctx context.Context, dev sketch.Device) int {
	ctx = context.WithValue(ctx, deviceKey{}, dev)
	mod, err := p.rt.InstantiateModule(ctx, p.compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return p.outcome(ctx, err)
	}
	defer mod.Close(context.Background())

	if p.hasSetup {
		if _, err := mod.ExportedFunction("setup").Call(ctx); err != nil {
			return p.outcome(ctx, err)
		}
	}
	loop := mod.ExportedFunction("loop")
	for ctx.Err() == nil {
		if _, err := loop.Call(ctx); err != nil {
			return p.outcome(ctx, err)
		}
	}
	return 0
}

// outcome maps a guest error to an exit code.
func (p *Program) outcome(ctx context.Context, err error) int {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			if ctx.Err() != nil {
				return 0
			}
		}
		return int(int32(exit.ExitCode()))
	}
	if ctx.Err() != nil {
		return 0
	}
	p.log.Warn("guest trapped", zap.Error(err))
	return CrashExitCode
}

// ---- host module

type deviceKey struct{}

func device(ctx context.Context) sketch.Device {
	dev, _ := ctx.Value(deviceKey{}).(sketch.Device)
	return dev
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// pinID narrows a guest pin number. Numbers past the uint16 range name no
// pin, so the call behaves as it would on an absent one.
func pinID(v uint32) (uint16, bool) { return uint16(v), v <= math.MaxUint16 }

// guestBytes views len bytes of guest memory at ptr.
func guestBytes(m api.Module, ptr, n uint32) ([]byte, bool) {
	mem := m.Memory()
	if mem == nil {
		return nil, n == 0
	}
	return mem.Read(ptr, n)
}

func hostModule(rt wazero.Runtime) wazero.HostModuleBuilder {
	b := rt.NewHostModuleBuilder(HostModule)
	fn := func(name string, f any) { b.NewFunctionBuilder().WithFunc(f).Export(name) }

	fn("digital_read", func(ctx context.Context, pin uint32) uint32 {
		id, ok := pinID(pin)
		if !ok {
			return 0
		}
		return b2u(device(ctx).DigitalRead(id))
	})
	fn("digital_write", func(ctx context.Context, pin, v uint32) {
		if id, ok := pinID(pin); ok {
			device(ctx).DigitalWrite(id, v != 0)
		}
	})
	fn("analog_read", func(ctx context.Context, pin uint32) uint32 {
		id, ok := pinID(pin)
		if !ok {
			return 0
		}
		return uint32(device(ctx).AnalogRead(id))
	})
	fn("analog_write", func(ctx context.Context, pin, v uint32) {
		if id, ok := pinID(pin); ok {
			device(ctx).AnalogWrite(id, mathx.Saturate(v, uint16(math.MaxUint16)))
		}
	})
	fn("uart_available", func(ctx context.Context, ch uint32) uint32 {
		return uint32(device(ctx).UartAvailable(int(ch)))
	})
	fn("uart_read", func(ctx context.Context, m api.Module, ch, ptr, n uint32) uint32 {
		buf, ok := guestBytes(m, ptr, n)
		if !ok {
			return 0
		}
		return uint32(device(ctx).UartRead(int(ch), buf))
	})
	fn("uart_write", func(ctx context.Context, m api.Module, ch, ptr, n uint32) uint32 {
		buf, ok := guestBytes(m, ptr, n)
		if !ok {
			return 0
		}
		return uint32(device(ctx).UartWrite(int(ch), buf))
	})
	fn("fb_setup", func(ctx context.Context, key, w, h, freq, flags uint32) uint32 {
		return b2u(device(ctx).FrameBufferSetup(int(key), sketch.FrameFormat{
			Width:  mathx.Saturate(w, uint16(math.MaxUint16)),
			Height: mathx.Saturate(h, uint16(math.MaxUint16)),
			Freq:   mathx.Saturate(freq, uint8(math.MaxUint8)),
			HFlip:  flags&FlagHFlip != 0,
			VFlip:  flags&FlagVFlip != 0,
		}))
	})
	fn("fb_write", func(ctx context.Context, m api.Module, key, ptr, n uint32) uint32 {
		buf, ok := guestBytes(m, ptr, n)
		if !ok {
			return 0
		}
		return b2u(device(ctx).FrameBufferWrite(int(key), sketch.RGB888, buf))
	})
	fn("fb_write_rgb444", func(ctx context.Context, m api.Module, key, ptr, n uint32) uint32 {
		buf, ok := guestBytes(m, ptr, n)
		if !ok {
			return 0
		}
		return b2u(device(ctx).FrameBufferWrite(int(key), sketch.RGB444, buf))
	})
	fn("fb_read", func(ctx context.Context, m api.Module, key, ptr, n uint32) uint32 {
		buf, ok := guestBytes(m, ptr, n)
		if !ok {
			return 0
		}
		return b2u(device(ctx).FrameBufferRead(int(key), buf))
	})
	fn("millis", func(ctx context.Context) uint64 {
		return uint64(device(ctx).Millis())
	})
	fn("delay", func(ctx context.Context, ms uint32) {
		device(ctx).Delay(time.Duration(ms) * time.Millisecond)
	})
	fn("debug_log", func(ctx context.Context, m api.Module, ptr, n uint32) {
		if buf, ok := guestBytes(m, ptr, n); ok {
			device(ctx).Log(buf)
		}
	})
	fn("exit", func(ctx context.Context, m api.Module, code uint32) {
		_ = m.CloseWithExitCode(ctx, code)
		panic(sys.NewExitError(code))
	})
	return b
}
