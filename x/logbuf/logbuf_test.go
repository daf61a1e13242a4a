package logbuf

import (
	"strings"
	"sync"
	"testing"
)

func TestDrainIsDestructive(t *testing.T) {
	b := New(0)
	b.WriteString("hello world")
	p := make([]byte, 5)
	if n := b.Drain(p); n != 5 || string(p) != "hello" {
		t.Fatalf("drain %d %q", n, p)
	}
	var sb strings.Builder
	b.DrainAll(&sb)
	if sb.String() != " world" {
		t.Fatalf("rest %q", sb.String())
	}
	if n := b.Drain(p); n != 0 {
		t.Fatalf("drain on empty = %d", n)
	}
}

func TestLimitDropsOldest(t *testing.T) {
	b := New(4)
	b.WriteString("abcdef")
	p := make([]byte, 8)
	n := b.Drain(p)
	if string(p[:n]) != "cdef" || b.Lost() != 2 {
		t.Fatalf("got %q lost=%d", p[:n], b.Lost())
	}
}

func TestConcurrentWriteDrain(t *testing.T) {
	b := New(0)
	const N = 1000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < N; i++ {
			b.Write([]byte{'x'})
		}
	}()
	total := 0
	p := make([]byte, 16)
	for total < N {
		total += b.Drain(p)
	}
	wg.Wait()
	if total != N {
		t.Fatalf("drained %d", total)
	}
}
