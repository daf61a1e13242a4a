package errcode

import "errors"

// Code is a stable, host-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Configuration
	InvalidConfig Code = "invalid_config"
	DuplicatePin  Code = "duplicate_pin"
	UnknownPin    Code = "unknown_pin"

	// Lifecycle
	InvalidState   Code = "invalid_state"
	NotCompiled    Code = "not_compiled"
	AlreadyRunning Code = "already_running"
	NoSketch       Code = "no_sketch"

	// Toolchain
	ResdirAbsent      Code = "resdir_absent"
	ResdirFile        Code = "resdir_file"
	ResdirEmpty       Code = "resdir_empty"
	ToolNotFound      Code = "tool_not_found"
	ToolUnknownOutput Code = "tool_unknown_output"
	ToolFailing       Code = "tool_failing"
	SketchInvalid     Code = "sketch_invalid"
	ConfigureFailed   Code = "configure_failed"
	BuildFailed       Code = "build_failed"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for op.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap attaches a code and op to cause. Nil cause yields nil.
func Wrap(c Code, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: cause}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
