package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{12, 0, 10, 10},
		{0, 0, 0, 0},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%d,%d,%d)=%d want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestSaturate(t *testing.T) {
	if got := Saturate(uint32(70000), uint16(math.MaxUint16)); got != math.MaxUint16 {
		t.Fatalf("got %d", got)
	}
	if got := Saturate(uint32(300), uint8(math.MaxUint8)); got != 255 {
		t.Fatalf("got %d", got)
	}
	if got := Saturate(uint32(42), uint8(math.MaxUint8)); got != 42 {
		t.Fatalf("got %d", got)
	}
}
