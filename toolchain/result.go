package toolchain

import "libsmce-go/errcode"

// Result is the categorized outcome of an environment check or compile.
type Result uint8

const (
	Ok Result = iota
	ResdirAbsent
	ResdirFile
	ResdirEmpty
	ToolNotFound
	ToolUnknownOutput
	ToolFailing
	SketchInvalid
	ConfigureFailed
	BuildFailed

	// Generic covers every failure without a category of its own.
	Generic Result = 255
)

var resultCodes = map[Result]errcode.Code{
	Ok:                errcode.OK,
	ResdirAbsent:      errcode.ResdirAbsent,
	ResdirFile:        errcode.ResdirFile,
	ResdirEmpty:       errcode.ResdirEmpty,
	ToolNotFound:      errcode.ToolNotFound,
	ToolUnknownOutput: errcode.ToolUnknownOutput,
	ToolFailing:       errcode.ToolFailing,
	SketchInvalid:     errcode.SketchInvalid,
	ConfigureFailed:   errcode.ConfigureFailed,
	BuildFailed:       errcode.BuildFailed,
	Generic:           errcode.Error,
}

var codeResults = func() map[errcode.Code]Result {
	m := make(map[errcode.Code]Result, len(resultCodes))
	for r, c := range resultCodes {
		m[c] = r
	}
	return m
}()

// Code is the stable error code for r. Unknown values map to errcode.Error.
func (r Result) Code() errcode.Code {
	if c, ok := resultCodes[r]; ok {
		return c
	}
	return errcode.Error
}

func (r Result) String() string { return string(r.Code()) }

// Err returns nil for Ok and the result's code otherwise.
func (r Result) Err() error {
	if r == Ok {
		return nil
	}
	return r.Code()
}

// ResultOf categorizes err. Errors without a toolchain code collapse to
// Generic.
func ResultOf(err error) Result {
	if err == nil {
		return Ok
	}
	if r, ok := codeResults[errcode.Of(err)]; ok && r != Ok {
		return r
	}
	return Generic
}

// Normalize collapses out-of-range values to Generic.
func Normalize(r Result) Result {
	if _, ok := resultCodes[r]; ok {
		return r
	}
	return Generic
}
