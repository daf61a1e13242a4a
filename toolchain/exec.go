package toolchain

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"libsmce-go/errcode"
	"libsmce-go/hostvm"
	"libsmce-go/sketch"
	"libsmce-go/types"
)

const (
	// DefaultTool is the build driver looked up in PATH.
	DefaultTool = "cmake"
	// ArtifactName is the WebAssembly module the build leaves in WorkDir.
	ArtifactName = "sketch.wasm"
)

// Oldest accepted tool version.
const minMajor, minMinor = 3, 12

var versionRe = regexp.MustCompile(`version (\d+)\.(\d+)`)

// Loader turns a build artifact into a program.
type Loader func(ctx context.Context, wasm []byte) (sketch.Program, error)

type ExecOption func(*ExecBuilder)

// WithTool selects the build driver by name or path.
func WithTool(name string) ExecOption { return func(b *ExecBuilder) { b.tool = name } }

// WithEnv adds KEY=VALUE pairs to the build processes' environment.
func WithEnv(kv ...string) ExecOption {
	return func(b *ExecBuilder) { b.env = append(b.env, kv...) }
}

// WithLoader replaces the WebAssembly loader.
func WithLoader(l Loader) ExecOption { return func(b *ExecBuilder) { b.load = l } }

func WithExecLogger(l *zap.Logger) ExecOption { return func(b *ExecBuilder) { b.log = l } }

// ExecBuilder drives an external CMake-style build in two steps, configure
// then build, and loads the resulting WebAssembly artifact.
type ExecBuilder struct {
	tool string
	env  []string
	load Loader
	log  *zap.Logger
}

func NewExecBuilder(opts ...ExecOption) *ExecBuilder {
	b := &ExecBuilder{tool: DefaultTool}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.load == nil {
		log := b.log
		b.load = func(ctx context.Context, wasm []byte) (sketch.Program, error) {
			return hostvm.Load(ctx, wasm, hostvm.WithLogger(log))
		}
	}
	return b
}

func (b *ExecBuilder) command(ctx context.Context, path string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, path, args...)
	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}
	return cmd
}

func (b *ExecBuilder) CheckEnvironment(ctx context.Context, _ string) (string, error) {
	path, err := exec.LookPath(b.tool)
	if err != nil {
		return "", errcode.Wrap(errcode.ToolNotFound, "check", err)
	}
	out, err := b.command(ctx, path, "--version").Output()
	if err != nil {
		return "", errcode.Wrap(errcode.ToolFailing, "check", err)
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		first, _, _ := bytes.Cut(out, []byte("\n"))
		return "", errcode.New(errcode.ToolUnknownOutput, "check", strconv.Quote(string(first)))
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	if major < minMajor || (major == minMajor && minor < minMinor) {
		return "", errcode.New(errcode.ToolFailing, "check", "version "+string(m[1])+"."+string(m[2])+" is too old")
	}
	b.log.Debug("build tool found", zap.String("path", path), zap.ByteString("version", m[0]))
	return path, nil
}

func (b *ExecBuilder) Build(ctx context.Context, req BuildRequest, log io.Writer) (sketch.Program, error) {
	src, err := filepath.Abs(req.Source)
	if err == nil {
		_, err = os.Stat(src)
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.SketchInvalid, "build", err)
	}
	path, err := exec.LookPath(b.tool)
	if err != nil {
		return nil, errcode.Wrap(errcode.ToolNotFound, "build", err)
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}

	if err := b.run(ctx, log, path, configureArgs(req, src)...); err != nil {
		return nil, errcode.Wrap(errcode.ConfigureFailed, "configure", err)
	}
	if err := b.run(ctx, log, path, "--build", req.WorkDir); err != nil {
		return nil, errcode.Wrap(errcode.BuildFailed, "build", err)
	}
	wasm, err := os.ReadFile(filepath.Join(req.WorkDir, ArtifactName))
	if err != nil {
		return nil, errcode.Wrap(errcode.BuildFailed, "artifact", err)
	}
	prog, err := b.load(ctx, wasm)
	if err != nil {
		return nil, errcode.Wrap(errcode.BuildFailed, "load", err)
	}
	return prog, nil
}

func (b *ExecBuilder) run(ctx context.Context, log io.Writer, path string, args ...string) error {
	cmd := b.command(ctx, path, args...)
	cmd.Stdout = log
	cmd.Stderr = log
	b.log.Debug("exec", zap.String("tool", path), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s %s", filepath.Base(path), strings.Join(args, " "))
	}
	return nil
}

// configureArgs renders the request as cache definitions. Lists use the
// CMake separator ";".
func configureArgs(req BuildRequest, src string) []string {
	specs := func(ls types.Libraries) string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.Spec()
		}
		return strings.Join(out, ";")
	}
	return []string{
		"-S", req.ResourceDir,
		"-B", req.WorkDir,
		"-DSMCE_DIR=" + req.ResourceDir,
		"-DSKETCH_IDENT=" + req.SketchID.Hex(),
		"-DSKETCH_PATH=" + src,
		"-DSKETCH_FQBN=" + req.Config.FQBN,
		"-DSKETCH_BOARD_ARCH=" + req.Profile.Arch,
		"-DSKETCH_EXTRA_BOARD_URIS=" + strings.Join(req.Config.ExtraBoardURIs, ";"),
		"-DSKETCH_PREPROC_LIBS=" + specs(req.Config.PreprocLibs),
		"-DSKETCH_COMPLINK_LIBS=" + specs(req.Config.ComplinkLibs),
		"-DSKETCH_COMPILE_DEFS=" + strings.Join(req.CompileDefs(), ";"),
		"-DSKETCH_COMPILE_OPTS=" + strings.Join(req.Config.ExtraCompileOpts, ";"),
	}
}
