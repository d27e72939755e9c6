// Package buffer provides a bounded text tail used to keep a preview of the
// most recent research output.
package buffer

import (
	"sync"
	"unicode/utf8"
)

// Tail keeps the last capacity bytes written to it. It is safe for
// concurrent use.
type Tail struct {
	mu       sync.RWMutex
	data     []byte
	capacity int
}

// NewTail creates a Tail holding at most capacity bytes. A non-positive
// capacity defaults to 1.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = 1
	}
	return &Tail{data: make([]byte, 0, capacity), capacity: capacity}
}

// Write appends p, discarding the oldest bytes beyond capacity. It never
// fails and implements io.Writer.
func (t *Tail) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.capacity {
		t.data = append(t.data[:0], p[len(p)-t.capacity:]...)
		return len(p), nil
	}
	if overflow := len(t.data) + len(p) - t.capacity; overflow > 0 {
		n := copy(t.data, t.data[overflow:])
		t.data = t.data[:n]
	}
	t.data = append(t.data, p...)
	return len(p), nil
}

// WriteString appends s.
func (t *Tail) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

// Bytes returns a copy of the retained bytes.
func (t *Tail) Bytes() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.data) == 0 {
		return nil
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out
}

// String returns the retained text without a rune cut in half at the front.
func (t *Tail) String() string {
	b := t.Bytes()
	for len(b) > 0 && !utf8.RuneStart(b[0]) {
		b = b[1:]
	}
	return string(b)
}

// Len returns the number of retained bytes.
func (t *Tail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}
