package types

import (
	"encoding/json"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"libsmce-go/errcode"
)

// ------------------------
// Sketch configuration
// ------------------------

// LibraryKind tags the variants of Library in JSON.
type LibraryKind string

const (
	LibFreestanding  LibraryKind = "freestanding"
	LibRemoteArduino LibraryKind = "remote_arduino"
	LibLocalArduino  LibraryKind = "local_arduino"
)

// Library is a dependency made available to a sketch build.
// The core treats it as opaque and only renders it for the builder.
type Library interface {
	Kind() LibraryKind
	// Spec renders the library as a single builder argument.
	Spec() string
}

// FreestandingLibrary is a prebuilt archive with headers.
type FreestandingLibrary struct {
	IncludeDir  string   `json:"include_dir"`
	ArchivePath string   `json:"archive_path"`
	CompileDefs []string `json:"compile_defs,omitempty"`
}

// RemoteArduinoLibrary is fetched by name from the Arduino index.
type RemoteArduinoLibrary struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// LocalArduinoLibrary is an Arduino library tree on disk, optionally
// patching a remote library of the same name.
type LocalArduinoLibrary struct {
	RootDir  string `json:"root_dir"`
	PatchFor string `json:"patch_for,omitempty"`
}

func (FreestandingLibrary) Kind() LibraryKind  { return LibFreestanding }
func (RemoteArduinoLibrary) Kind() LibraryKind { return LibRemoteArduino }
func (LocalArduinoLibrary) Kind() LibraryKind  { return LibLocalArduino }

func (l FreestandingLibrary) Spec() string {
	s := "freestanding:" + l.IncludeDir + ";" + l.ArchivePath
	if len(l.CompileDefs) > 0 {
		s += ";" + strings.Join(l.CompileDefs, ",")
	}
	return s
}

func (l RemoteArduinoLibrary) Spec() string {
	if l.Version == "" {
		return "remote:" + l.Name
	}
	return "remote:" + l.Name + "@" + l.Version
}

func (l LocalArduinoLibrary) Spec() string {
	if l.PatchFor == "" {
		return "local:" + l.RootDir
	}
	return "local:" + l.RootDir + ";patch=" + l.PatchFor
}

// Libraries is a list of Library that round-trips through tagged JSON.
type Libraries []Library

type taggedLibrary struct {
	Kind LibraryKind     `json:"kind"`
	Lib  json.RawMessage `json:"lib"`
}

func (ls Libraries) MarshalJSON() ([]byte, error) {
	out := make([]taggedLibrary, 0, len(ls))
	for _, l := range ls {
		raw, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		out = append(out, taggedLibrary{Kind: l.Kind(), Lib: raw})
	}
	return json.Marshal(out)
}

func (ls *Libraries) UnmarshalJSON(b []byte) error {
	var in []taggedLibrary
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := make(Libraries, 0, len(in))
	for i, t := range in {
		var (
			l   Library
			err error
		)
		switch t.Kind {
		case LibFreestanding:
			var v FreestandingLibrary
			err = json.Unmarshal(t.Lib, &v)
			l = v
		case LibRemoteArduino:
			var v RemoteArduinoLibrary
			err = json.Unmarshal(t.Lib, &v)
			l = v
		case LibLocalArduino:
			var v LocalArduinoLibrary
			err = json.Unmarshal(t.Lib, &v)
			l = v
		default:
			return errors.Wrapf(errcode.InvalidConfig, "library %d: unknown kind %q", i, t.Kind)
		}
		if err != nil {
			return errors.Wrapf(err, "library %d", i)
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

// SketchConfig selects the board target and build inputs of a sketch.
type SketchConfig struct {
	FQBN             string    `json:"fqbn"`
	ExtraBoardURIs   []string  `json:"extra_board_uris,omitempty"`
	PreprocLibs      Libraries `json:"preproc_libs,omitempty"`
	ComplinkLibs     Libraries `json:"complink_libs,omitempty"`
	ExtraCompileDefs []string  `json:"extra_compile_defs,omitempty"`
	ExtraCompileOpts []string  `json:"extra_compile_opts,omitempty"`
}

// Clone returns a copy with independent slices.
func (c SketchConfig) Clone() SketchConfig {
	c.ExtraBoardURIs = append([]string(nil), c.ExtraBoardURIs...)
	c.PreprocLibs = c.PreprocLibs.clone()
	c.ComplinkLibs = c.ComplinkLibs.clone()
	c.ExtraCompileDefs = append([]string(nil), c.ExtraCompileDefs...)
	c.ExtraCompileOpts = append([]string(nil), c.ExtraCompileOpts...)
	return c
}

func (ls Libraries) clone() Libraries {
	if ls == nil {
		return nil
	}
	out := make(Libraries, len(ls))
	for i, l := range ls {
		if f, ok := l.(FreestandingLibrary); ok {
			f.CompileDefs = append([]string(nil), f.CompileDefs...)
			l = f
		}
		out[i] = l
	}
	return out
}

// ParseCompileOpts splits a shell-style option string ("-O2 -DNAME='a b'").
func ParseCompileOpts(s string) ([]string, error) {
	opts, err := shlex.Split(s)
	if err != nil {
		return nil, errors.Wrapf(errcode.InvalidConfig, "compile opts %q: %v", s, err)
	}
	return opts, nil
}

// ------------------------
// Legacy sketch configuration
// ------------------------

// PluginManifest is the older plugin description format.
type PluginManifest struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Depends      string   `json:"depends,omitempty"`
	NeedsDevices string   `json:"needs_devices,omitempty"`
	URI          string   `json:"uri,omitempty"`
	PatchURI     string   `json:"patch_uri,omitempty"`
	Defaults     uint8    `json:"defaults,omitempty"`
	IncDirs      []string `json:"incdirs,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	LinkDirs     []string `json:"linkdirs,omitempty"`
	LinkLibs     []string `json:"linklibs,omitempty"`
}

// LegacySketchConfig is accepted on import only and converted with Normalize.
type LegacySketchConfig struct {
	FQBN             string           `json:"fqbn"`
	ExtraBoardURIs   []string         `json:"extra_board_uris,omitempty"`
	LegacyLibs       []string         `json:"legacy_libs,omitempty"` // "name" or "name@version"
	Plugins          []PluginManifest `json:"plugins,omitempty"`
	ExtraCompileDefs []string         `json:"extra_compile_defs,omitempty"`
	ExtraCompileOpts []string         `json:"extra_compile_opts,omitempty"`
}

// Normalize maps legacy libraries to remote libraries and plugins to local
// (patch_uri set) or freestanding libraries.
func (l LegacySketchConfig) Normalize() SketchConfig {
	out := SketchConfig{
		FQBN:             l.FQBN,
		ExtraBoardURIs:   append([]string(nil), l.ExtraBoardURIs...),
		ExtraCompileDefs: append([]string(nil), l.ExtraCompileDefs...),
		ExtraCompileOpts: append([]string(nil), l.ExtraCompileOpts...),
	}
	for _, s := range l.LegacyLibs {
		name, ver, _ := strings.Cut(s, "@")
		out.PreprocLibs = append(out.PreprocLibs, RemoteArduinoLibrary{Name: name, Version: ver})
	}
	for _, p := range l.Plugins {
		switch {
		case p.PatchURI != "":
			out.PreprocLibs = append(out.PreprocLibs, LocalArduinoLibrary{RootDir: p.PatchURI, PatchFor: p.Name})
		case len(p.IncDirs) > 0 || len(p.LinkLibs) > 0:
			lib := FreestandingLibrary{CompileDefs: []string{"SMCE_PLUGIN_" + strings.ToUpper(p.Name)}}
			if len(p.IncDirs) > 0 {
				lib.IncludeDir = p.IncDirs[0]
			}
			if len(p.LinkLibs) > 0 {
				lib.ArchivePath = p.LinkLibs[0]
			}
			out.ComplinkLibs = append(out.ComplinkLibs, lib)
		default:
			out.PreprocLibs = append(out.PreprocLibs, RemoteArduinoLibrary{Name: p.Name, Version: p.Version})
		}
	}
	return out
}

// DecodeSketchConfig accepts either shape. The legacy shape is detected by
// the presence of legacy_libs or plugins.
func DecodeSketchConfig(raw []byte) (SketchConfig, error) {
	var probe struct {
		LegacyLibs json.RawMessage `json:"legacy_libs"`
		Plugins    json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return SketchConfig{}, errors.Wrap(errcode.InvalidConfig, err.Error())
	}
	if probe.LegacyLibs != nil || probe.Plugins != nil {
		var l LegacySketchConfig
		if err := json.Unmarshal(raw, &l); err != nil {
			return SketchConfig{}, errors.Wrap(errcode.InvalidConfig, err.Error())
		}
		return l.Normalize(), nil
	}
	var c SketchConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return SketchConfig{}, errors.Wrap(errcode.InvalidConfig, err.Error())
	}
	return c, nil
}
