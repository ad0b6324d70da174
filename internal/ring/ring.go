// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a simple ring buffer used for rolling
// sample windows.
package ring

type Buffer[T any] struct {
	data       []T
	head, tail int
	full       bool
}

func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

func (r *Buffer[T]) Len() int {
	if r.full {
		return len(r.data)
	}
	if r.head <= r.tail {
		return r.tail - r.head
	}
	return len(r.data) - r.head + r.tail
}

func (r *Buffer[T]) Size() int {
	return len(r.data)
}

// Write appends src, overwriting the oldest elements when the buffer
// is full.
func (r *Buffer[T]) Write(src []T) {
	if len(src) >= len(r.data) {
		r.head = 0
		r.tail = 0
		r.full = true
		copy(r.data, src[len(src)-len(r.data):])
		return
	}
	for _, v := range src {
		r.data[r.tail] = v
		r.tail++
		if r.tail == len(r.data) {
			r.tail = 0
		}
		if r.full {
			r.head = r.tail
		}
		if r.tail == r.head {
			r.full = true
		}
	}
}

// CopyTo copies the buffered elements, oldest first, into dst and
// returns the number of elements copied.
func (r *Buffer[T]) CopyTo(dst []T) int {
	if !r.full && r.head <= r.tail {
		return copy(dst, r.data[r.head:r.tail])
	}
	n := copy(dst, r.data[r.head:])
	n += copy(dst[n:], r.data[:r.head])
	return n
}

// Values returns a copy of the buffered elements, oldest first.
func (r *Buffer[T]) Values() []T {
	dst := make([]T, r.Len())
	r.CopyTo(dst)
	return dst
}

// Reset discards all buffered elements.
func (r *Buffer[T]) Reset() {
	r.head = 0
	r.tail = 0
	r.full = false
}
