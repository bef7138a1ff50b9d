package ast

import (
	"fmt"

	"fortio.org/safecast"
)

// Arena is an index-addressed slab. Handles are 1-based so that 0 can mean
// "no value"; they stay valid until Reset.
type Arena[T any] struct {
	data []T
}

// NewArena allocates an arena with room for capHint values.
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		data: make([]T, 0, capHint),
	}
}

// Allocate stores value and returns its handle.
func (a *Arena[T]) Allocate(value T) uint32 {
	a.data = append(a.data, value)
	n, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	return n
}

func (a *Arena[T]) Get(index uint32) *T {
	if index == 0 || int(index) > len(a.data) {
		return nil
	}
	return &a.data[index-1]
}

// Slice exposes the backing storage; callers must not append to it.
func (a *Arena[T]) Slice() []T {
	return a.data
}

func (a *Arena[T]) Len() uint32 {
	return uint32(len(a.data)) //nolint:gosec // bounded by Allocate
}

// Reset drops every value in one pass. Outstanding handles become dangling
// indexes that Get reports as absent.
func (a *Arena[T]) Reset() {
	clear(a.data)
	a.data = a.data[:0]
}
