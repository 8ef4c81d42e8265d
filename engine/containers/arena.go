package containers

import (
	"errors"
	"fmt"
)

var (
	ErrArenaSealed  = errors.New("arena is sealed")
	ErrInvalidIndex = errors.New("index out of range")
	ErrStaleIndex   = errors.New("stale index")
)

// Handle is an arena index paired with the generation it was issued at.
type Handle struct {
	Index      uint32
	Generation uint32
}

type arenaSlot[T any] struct {
	value      T
	generation uint32
}

// Arena owns values addressed by a stable uint32 index. Indices are never
// reused; replacing a value in place bumps its generation so holders of an
// old Handle can detect the swap. While sealed, Insert fails.
type Arena[T any] struct {
	name   string
	slots  []arenaSlot[T]
	sealed bool
}

func NewArena[T any](name string, capacity int) *Arena[T] {
	return &Arena[T]{
		name:  name,
		slots: make([]arenaSlot[T], 0, capacity),
	}
}

// Insert appends value and returns its index.
func (a *Arena[T]) Insert(value T) (uint32, error) {
	if a.sealed {
		return 0, fmt.Errorf("%s: insert: %w", a.name, ErrArenaSealed)
	}
	a.slots = append(a.slots, arenaSlot[T]{value: value})
	return uint32(len(a.slots) - 1), nil
}

// Replace swaps the value at index in place and bumps its generation.
// Replacing is allowed while sealed: hot reload happens between frames.
func (a *Arena[T]) Replace(index uint32, value T) error {
	if !a.Valid(index) {
		return fmt.Errorf("%s: replace %d (len %d): %w", a.name, index, len(a.slots), ErrInvalidIndex)
	}
	a.slots[index].value = value
	a.slots[index].generation++
	return nil
}

// Get returns the value at index, or false when out of range.
func (a *Arena[T]) Get(index uint32) (T, bool) {
	if !a.Valid(index) {
		var zero T
		return zero, false
	}
	return a.slots[index].value, true
}

// At returns the value at index. It panics on an invalid index, like a slice.
func (a *Arena[T]) At(index uint32) T {
	return a.slots[index].value
}

// Ptr gives in-place access to the value at index.
func (a *Arena[T]) Ptr(index uint32) *T {
	return &a.slots[index].value
}

// Handle returns the current generation-tagged handle for index.
func (a *Arena[T]) Handle(index uint32) (Handle, error) {
	if !a.Valid(index) {
		return Handle{}, fmt.Errorf("%s: handle %d: %w", a.name, index, ErrInvalidIndex)
	}
	return Handle{Index: index, Generation: a.slots[index].generation}, nil
}

// Resolve returns the value for h, failing if the slot was replaced since h was issued.
func (a *Arena[T]) Resolve(h Handle) (T, error) {
	var zero T
	if !a.Valid(h.Index) {
		return zero, fmt.Errorf("%s: resolve %d: %w", a.name, h.Index, ErrInvalidIndex)
	}
	slot := a.slots[h.Index]
	if slot.generation != h.Generation {
		return zero, fmt.Errorf("%s: resolve %d: generation %d != %d: %w", a.name, h.Index, h.Generation, slot.generation, ErrStaleIndex)
	}
	return slot.value, nil
}

func (a *Arena[T]) Generation(index uint32) uint32 {
	if !a.Valid(index) {
		return 0
	}
	return a.slots[index].generation
}

func (a *Arena[T]) Valid(index uint32) bool {
	return int(index) < len(a.slots)
}

func (a *Arena[T]) Len() int {
	return len(a.slots)
}

// Seal forbids insertion until Unseal. The renderer seals its arenas for the
// duration of frame recording.
func (a *Arena[T]) Seal() {
	a.sealed = true
}

func (a *Arena[T]) Unseal() {
	a.sealed = false
}

func (a *Arena[T]) Sealed() bool {
	return a.sealed
}

// Each visits every value in index order.
func (a *Arena[T]) Each(fn func(index uint32, value T)) {
	for i := range a.slots {
		fn(uint32(i), a.slots[i].value)
	}
}
