// Package profiles holds board profiles: the topology and build defaults
// for each supported fully-qualified board name (FQBN).
package profiles

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"libsmce-go/errcode"
	"libsmce-go/types"
)

// Profile describes one board target.
type Profile struct {
	FQBN        string            `json:"fqbn"`
	Name        string            `json:"name"`
	Arch        string            `json:"arch"`
	CompileDefs []string          `json:"compile_defs,omitempty"`
	Board       types.BoardConfig `json:"board"`
}

// Resolver maps an FQBN to a profile.
type Resolver interface {
	Resolve(fqbn string) (Profile, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(fqbn string) (Profile, bool)

func (f ResolverFunc) Resolve(fqbn string) (Profile, bool) { return f(fqbn) }

// Default resolves against the registry, falling back to embedded profiles.
var Default Resolver = ResolverFunc(Lookup)

// EmbeddedProfileLookup allows overriding how embedded profiles are found.
var EmbeddedProfileLookup = func(fqbn string) ([]byte, bool) {
	b, ok := embeddedProfiles[fqbn]
	return b, ok
}

var (
	mu       sync.RWMutex
	profiles = map[string]Profile{}
)

// Register adds p. It panics if the FQBN is already registered.
func Register(p Profile) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := profiles[p.FQBN]; exists {
		panic(fmt.Sprintf("board profile already registered for %q", p.FQBN))
	}
	profiles[p.FQBN] = p
}

// Lookup resolves fqbn from registered profiles first, then embedded ones.
func Lookup(fqbn string) (Profile, bool) {
	mu.RLock()
	p, ok := profiles[fqbn]
	mu.RUnlock()
	if ok {
		return p, true
	}
	raw, ok := EmbeddedProfileLookup(fqbn)
	if !ok {
		return Profile{}, false
	}
	p, err := Decode(raw)
	if err != nil || p.FQBN != fqbn {
		return Profile{}, false
	}
	return p, true
}

// Names lists registered and embedded FQBNs in sorted order.
func Names() []string {
	seen := map[string]struct{}{}
	mu.RLock()
	for k := range profiles {
		seen[k] = struct{}{}
	}
	mu.RUnlock()
	for k := range embeddedProfiles {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode parses and validates a JSON profile.
func Decode(raw []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, errors.Wrap(errcode.InvalidConfig, err.Error())
	}
	if p.FQBN == "" {
		return Profile{}, errors.Wrap(errcode.InvalidConfig, "profile without fqbn")
	}
	if err := p.Board.Validate(); err != nil {
		return Profile{}, errors.Wrapf(err, "profile %s", p.FQBN)
	}
	return p, nil
}

// DecodeBoard parses a bare board topology.
func DecodeBoard(raw []byte) (types.BoardConfig, error) {
	var c types.BoardConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return types.BoardConfig{}, errors.Wrap(errcode.InvalidConfig, err.Error())
	}
	if err := c.Validate(); err != nil {
		return types.BoardConfig{}, err
	}
	return c, nil
}
