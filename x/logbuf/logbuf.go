// Package logbuf is a concurrent append-only byte log with destructive,
// non-blocking reads.
package logbuf

import (
	"bytes"
	"io"
	"sync"
)

// Buffer accumulates writes until drained. With a non-zero limit the oldest
// bytes are discarded once the backlog exceeds it.
type Buffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
	lost  uint64
}

func New(limit int) *Buffer { return &Buffer{limit: limit} }

// Write never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf.Write(p)
	if b.limit > 0 && b.buf.Len() > b.limit {
		over := b.buf.Len() - b.limit
		b.buf.Next(over)
		b.lost += uint64(over)
	}
	b.mu.Unlock()
	return len(p), nil
}

func (b *Buffer) WriteString(s string) (int, error) { return b.Write([]byte(s)) }

// Drain moves up to len(p) buffered bytes into p and returns the count.
// It returns 0 when nothing is buffered.
func (b *Buffer) Drain(p []byte) int {
	b.mu.Lock()
	n, _ := b.buf.Read(p)
	b.mu.Unlock()
	return n
}

// DrainAll empties the buffer into w.
func (b *Buffer) DrainAll(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteTo(w)
}

// Lost is the number of bytes discarded by the limit.
func (b *Buffer) Lost() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lost
}

// Reset discards the backlog and the lost count.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.lost = 0
	b.mu.Unlock()
}
