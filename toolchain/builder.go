package toolchain

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"libsmce-go/errcode"
	"libsmce-go/profiles"
	"libsmce-go/sketch"
	"libsmce-go/types"
	"libsmce-go/uuid"
)

// BuildRequest is everything a Builder needs to produce a program.
type BuildRequest struct {
	ResourceDir string
	Source      string
	SketchID    uuid.UUID
	Config      types.SketchConfig
	// Profile is the resolved target; zero when the board comes from an
	// extra board URI.
	Profile profiles.Profile
	WorkDir string
}

// CompileDefs merges the profile's defines with the sketch's extras.
func (r BuildRequest) CompileDefs() []string {
	out := append([]string(nil), r.Profile.CompileDefs...)
	return append(out, r.Config.ExtraCompileDefs...)
}

// Builder is the external build system behind a Toolchain.
//
// Errors carrying a toolchain error code (see Result.Code) are reported in
// that category; any other error is reported as Generic.
type Builder interface {
	// CheckEnvironment locates the build tool and returns its path.
	CheckEnvironment(ctx context.Context, resourceDir string) (toolPath string, err error)
	// Build compiles req, streaming diagnostics to log.
	Build(ctx context.Context, req BuildRequest, log io.Writer) (sketch.Program, error)
}

// ProgramRegistry is an in-process Builder for sketches written in Go.
// A sketch source names a registered program; a path is reduced to its
// base name without extension, so "blink.ino" selects "blink".
type ProgramRegistry struct {
	mu    sync.RWMutex
	progs map[string]sketch.Program
}

func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{progs: map[string]sketch.Program{}}
}

// Register adds p under name. It panics if name is taken.
func (r *ProgramRegistry) Register(name string, p sketch.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.progs[name]; exists {
		panic(fmt.Sprintf("program already registered for %q", name))
	}
	r.progs[name] = p
}

func (r *ProgramRegistry) Lookup(name string) (sketch.Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.progs[name]
	return p, ok
}

func programName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (r *ProgramRegistry) CheckEnvironment(context.Context, string) (string, error) {
	return "builtin", nil
}

func (r *ProgramRegistry) Build(ctx context.Context, req BuildRequest, log io.Writer) (sketch.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := programName(req.Source)
	p, ok := r.Lookup(name)
	if !ok {
		return nil, errcode.New(errcode.SketchInvalid, "build", fmt.Sprintf("no built-in program %q", name))
	}
	fmt.Fprintf(log, "-- Using built-in program %q for %s\n", name, req.Config.FQBN)
	return p, nil
}
