// Package uuid implements the 128-bit identifiers attached to sketches.
package uuid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// UUID is an opaque 128-bit identifier.
type UUID [16]byte

// Nil is the all-zero identifier.
var Nil UUID

// Generate returns a random (version 4) identifier.
func Generate() UUID {
	var u UUID
	if _, err := rand.Read(u[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(errors.Wrap(err, "uuid: read random"))
	}
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u
}

// Hex renders the identifier as 32 lowercase hex digits.
func (u UUID) Hex() string {
	var buf [32]byte
	hex.Encode(buf[:], u[:])
	return string(buf[:])
}

func (u UUID) String() string { return u.Hex() }

func (u UUID) IsZero() bool { return u == Nil }

// ParseHex is the inverse of Hex. Upper-case digits are accepted.
func ParseHex(s string) (UUID, error) {
	var u UUID
	if len(s) != 2*len(u) {
		return Nil, errors.Errorf("uuid: want %d hex digits, got %d", 2*len(u), len(s))
	}
	if _, err := hex.Decode(u[:], []byte(s)); err != nil {
		return Nil, errors.Wrapf(err, "uuid: parse %q", s)
	}
	return u, nil
}

func (u UUID) MarshalText() ([]byte, error) { return []byte(u.Hex()), nil }

func (u *UUID) UnmarshalText(b []byte) error {
	v, err := ParseHex(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
