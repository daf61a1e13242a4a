package shmring

import (
	"sync"
	"testing"
)

// fakeIO models partial producer/consumer progress (accept up to k bytes).
type fakeIO struct{ k int }

func (f fakeIO) take(p []byte) []byte {
	if len(p) > f.k {
		return p[:f.k]
	}
	return p
}

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	// Odd capacity forces wraps at unaligned offsets.
	r := New(61)
	prod := fakeIO{k: 7}

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			step := r.WriteFrom(prod.take(p))
			p = p[step:]
		}
		var tmp [17]byte
		n := r.ReadInto(tmp[:])
		copy(dst[off:], tmp[:n])
		off += n
	}

	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
}

func TestPartialWriteReturnsCapacity(t *testing.T) {
	r := New(4)
	if n := r.WriteFrom([]byte("abcdef")); n != 4 {
		t.Fatalf("write 6 into cap 4 -> %d", n)
	}
	if r.Space() != 0 || r.Available() != 4 {
		t.Fatalf("space=%d avail=%d", r.Space(), r.Available())
	}
	if n := r.WriteFrom([]byte("x")); n != 0 {
		t.Fatalf("write into full ring -> %d", n)
	}
	if b, ok := r.Front(); !ok || b != 'a' {
		t.Fatalf("front = %q,%v", b, ok)
	}
	buf := make([]byte, 8)
	n := r.ReadInto(buf)
	if string(buf[:n]) != "abcd" {
		t.Fatalf("read %q", buf[:n])
	}
	if _, ok := r.Front(); ok {
		t.Fatal("front on empty ring reported a byte")
	}
}

func TestReadableWritableEdges(t *testing.T) {
	r := New(3)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	if n := r.WriteFrom([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("write 3 -> %d", n)
	}
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable")
	}
	select {
	case <-r.Readable():
		t.Fatal("unexpected extra Readable")
	default:
	}
	r.ReadInto(make([]byte, 1))
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable after draining a full ring")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r := New(16)
	const N = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var b [1]byte
		for i := 0; i < N; {
			b[0] = byte(i)
			if r.WriteFrom(b[:]) == 1 {
				i++
			}
		}
	}()
	var got [1]byte
	for i := 0; i < N; {
		if r.ReadInto(got[:]) == 1 {
			if got[0] != byte(i) {
				t.Fatalf("at %d got %d", i, got[0])
			}
			i++
		}
	}
	wg.Wait()
}
