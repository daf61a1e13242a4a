// Package shmring provides a lock-free single-producer, single-consumer
// byte queue of fixed capacity.
package shmring

import "sync/atomic"

// Ring is a single-producer, single-consumer byte ring.
// One goroutine may call the producer side (WriteFrom, Space) while another
// calls the consumer side (ReadInto, Front, Available) concurrently.
type Ring struct {
	buf []byte
	rd  atomic.Uint64 // consumer index (monotonic)
	wr  atomic.Uint64 // producer index (monotonic)

	readable chan struct{} // 0->>0 available edge
	writable chan struct{} // full->not full edge
}

// New allocates a ring holding up to size bytes. size must be >= 1.
func New(size int) *Ring {
	if size < 1 {
		panic("shmring: size must be >= 1")
	}
	return &Ring{
		buf:      make([]byte, size),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint64 { return uint64(len(r.buf)) }

// Cap is the fixed capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// ---- Producer side

// Space is the number of bytes WriteFrom would currently accept.
func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// WriteFrom copies as much of src as fits and returns the count.
func (r *Ring) WriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load() // acquire
	wr := r.wr.Load()
	beforeAvail := wr - rd
	space := int(r.size() - beforeAvail)
	if space <= 0 {
		return 0
	}
	n = min(len(src), space)

	wrIdx := int(wr % r.size())
	first := copy(r.buf[wrIdx:], src[:n])
	if first < n {
		copy(r.buf, src[first:n])
	}
	r.wr.Store(wr + uint64(n)) // release

	if beforeAvail == 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return n
}

// ---- Consumer side

// Available is the number of bytes ready to be read.
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Front returns the oldest byte without consuming it.
func (r *Ring) Front() (byte, bool) {
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	if wr == rd {
		return 0, false
	}
	return r.buf[rd%r.size()], true
}

// ReadInto moves up to len(dst) bytes out of the ring and returns the count.
func (r *Ring) ReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	n = min(len(dst), avail)

	rdIdx := int(rd % r.size())
	first := copy(dst[:n], r.buf[rdIdx:])
	if first < n {
		copy(dst[first:n], r.buf)
	}
	r.rd.Store(rd + uint64(n)) // release

	if uint64(avail) == r.size() {
		select {
		case r.writable <- struct{}{}:
		default:
		}
	}
	return n
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }
