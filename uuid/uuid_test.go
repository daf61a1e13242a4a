package uuid

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateIsDistinct(t *testing.T) {
	a, b := Generate(), Generate()
	if a == b {
		t.Fatalf("two generations collided: %s", a)
	}
	if a.IsZero() {
		t.Fatal("generated zero identifier")
	}
}

func TestHexRoundTrip(t *testing.T) {
	u := Generate()
	s := u.Hex()
	if len(s) != 32 {
		t.Fatalf("hex width = %d", len(s))
	}
	if s != strings.ToLower(s) {
		t.Fatalf("hex not lowercase: %s", s)
	}
	back, err := ParseHex(s)
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if back != u {
		t.Fatalf("round trip: %s != %s", back, u)
	}
	if up, err := ParseHex(strings.ToUpper(s)); err != nil || up != u {
		t.Fatalf("upper-case parse: %v %s", err, up)
	}
}

func TestParseHexRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "abc", strings.Repeat("z", 32), strings.Repeat("0", 33)} {
		if _, err := ParseHex(s); err == nil {
			t.Errorf("ParseHex(%q) accepted", s)
		}
	}
}

func TestJSONUsesHex(t *testing.T) {
	u := Generate()
	b, err := json.Marshal(struct{ ID UUID }{u})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), u.Hex()) {
		t.Fatalf("json %s missing %s", b, u.Hex())
	}
	var back struct{ ID UUID }
	if err := json.Unmarshal(b, &back); err != nil || back.ID != u {
		t.Fatalf("unmarshal: %v %s", err, back.ID)
	}
}
