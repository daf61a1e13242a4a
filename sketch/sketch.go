// Package sketch holds the unit of compilation: source, configuration,
// identity and, once built, the executable Program.
package sketch

import (
	"context"
	"sync/atomic"

	"libsmce-go/types"
	"libsmce-go/uuid"
)

// Sketch is a program source plus its build configuration.
// The source and configuration are fixed at construction.
type Sketch struct {
	source string
	config types.SketchConfig
	id     uuid.UUID

	prog atomic.Pointer[programBox]
}

type programBox struct{ p Program }

// New creates an uncompiled sketch with a fresh identifier.
func New(source string, cfg types.SketchConfig) *Sketch {
	return &Sketch{source: source, config: cfg.Clone(), id: uuid.Generate()}
}

func (s *Sketch) Source() string { return s.source }

// Config returns a copy of the build configuration.
func (s *Sketch) Config() types.SketchConfig { return s.config.Clone() }

func (s *Sketch) UUID() uuid.UUID { return s.id }

// IsCompiled reports whether a toolchain bound a program to this sketch.
func (s *Sketch) IsCompiled() bool { return s.prog.Load() != nil }

// Program returns the bound program, or nil when not compiled.
func (s *Sketch) Program() Program {
	if b := s.prog.Load(); b != nil {
		return b.p
	}
	return nil
}

// Bind marks the sketch compiled with p. A nil p marks it uncompiled.
// Toolchains call this on a successful build.
//
// The sketch owns its program: a replaced program that has a
// Close(context.Context) error method is closed, and a board still running
// it ends as if the program exited.
func (s *Sketch) Bind(p Program) {
	var box *programBox
	if p != nil {
		box = &programBox{p: p}
	}
	prev := s.prog.Swap(box)
	if prev == nil {
		return
	}
	c, ok := prev.p.(closer)
	if !ok {
		return
	}
	if pc, same := p.(closer); same && pc == c {
		return
	}
	c.Close(context.Background())
}

type closer interface{ Close(context.Context) error }
