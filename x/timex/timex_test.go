package timex

import (
	"testing"
	"time"
)

func TestPeriod(t *testing.T) {
	if Period(0) != 0 {
		t.Fatal("unpaced period should be zero")
	}
	if got := Period(50); got != 20*time.Millisecond {
		t.Fatalf("Period(50) = %v", got)
	}
}
