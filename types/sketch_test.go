package types

import (
	"encoding/json"
	"reflect"
	"testing"

	"libsmce-go/errcode"
)

func TestLibrariesRoundTripTagged(t *testing.T) {
	in := SketchConfig{
		FQBN: "arduino:avr:nano",
		PreprocLibs: Libraries{
			RemoteArduinoLibrary{Name: "MQTT", Version: "2.5.0"},
			LocalArduinoLibrary{RootDir: "/libs/wifi", PatchFor: "WiFi"},
		},
		ComplinkLibs: Libraries{FreestandingLibrary{IncludeDir: "inc", ArchivePath: "libx.a"}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := DecodeSketchConfig(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in.PreprocLibs, out.PreprocLibs) || !reflect.DeepEqual(in.ComplinkLibs, out.ComplinkLibs) {
		t.Fatalf("libraries changed: %#v", out)
	}
}

func TestSketchConfigCloneCopiesLibraryDefs(t *testing.T) {
	orig := SketchConfig{
		FQBN:         "arduino:avr:uno",
		PreprocLibs:  Libraries{FreestandingLibrary{IncludeDir: "inc", CompileDefs: []string{"A=1"}}},
		ComplinkLibs: Libraries{FreestandingLibrary{ArchivePath: "libx.a", CompileDefs: []string{"B=2"}}, RemoteArduinoLibrary{Name: "MQTT"}},
	}
	cp := orig.Clone()
	orig.PreprocLibs[0].(FreestandingLibrary).CompileDefs[0] = "A=9"
	orig.ComplinkLibs[0].(FreestandingLibrary).CompileDefs[0] = "B=9"
	orig.ComplinkLibs[1] = RemoteArduinoLibrary{Name: "Servo"}

	if got := cp.PreprocLibs[0].(FreestandingLibrary).CompileDefs[0]; got != "A=1" {
		t.Fatalf("preproc defs shared: %q", got)
	}
	if got := cp.ComplinkLibs[0].(FreestandingLibrary).CompileDefs[0]; got != "B=2" {
		t.Fatalf("complink defs shared: %q", got)
	}
	if cp.ComplinkLibs[1].(RemoteArduinoLibrary).Name != "MQTT" {
		t.Fatalf("library slice shared: %#v", cp.ComplinkLibs)
	}
}

func TestUnknownLibraryKindRejected(t *testing.T) {
	_, err := DecodeSketchConfig([]byte(`{"fqbn":"x","preproc_libs":[{"kind":"magic","lib":{}}]}`))
	if errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("err = %v", err)
	}
}

func TestLegacyNormalize(t *testing.T) {
	raw := `{"fqbn":"arduino:avr:uno","legacy_libs":["MQTT@2.5.0","Servo"],
	"plugins":[{"name":"wifi","version":"1","patch_uri":"/p/wifi"},{"name":"ext","incdirs":["inc"],"linklibs":["libext.a"]}]}`
	cfg, err := DecodeSketchConfig([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Libraries{
		RemoteArduinoLibrary{Name: "MQTT", Version: "2.5.0"},
		RemoteArduinoLibrary{Name: "Servo"},
		LocalArduinoLibrary{RootDir: "/p/wifi", PatchFor: "wifi"},
	}
	if !reflect.DeepEqual(cfg.PreprocLibs, want) {
		t.Fatalf("preproc = %#v", cfg.PreprocLibs)
	}
	if len(cfg.ComplinkLibs) != 1 || cfg.ComplinkLibs[0].Spec() != "freestanding:inc;libext.a;SMCE_PLUGIN_EXT" {
		t.Fatalf("complink = %#v", cfg.ComplinkLibs)
	}
}

func TestParseCompileOpts(t *testing.T) {
	got, err := ParseCompileOpts(`-O2 -DNAME="a b" -Wall`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-O2", "-DNAME=a b", "-Wall"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
	if _, err := ParseCompileOpts(`-D"unterminated`); errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("unterminated quote err = %v", err)
	}
}
