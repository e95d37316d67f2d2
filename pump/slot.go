package pump

import (
	"sync"
)

// Slot is a single-assignment box handing a value from the pump goroutine to
// a waiting caller. The first Set wins; later calls are ignored.
type Slot[T any] struct {
	once  sync.Once
	ready chan struct{}
	mu    sync.Mutex
	value T
	taken bool
}

// NewSlot creates an empty slot
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{})}
}

// Set stores v and wakes any waiter. It reports whether v was stored.
func (s *Slot[T]) Set(v T) bool {
	stored := false
	s.once.Do(func() {
		s.mu.Lock()
		s.value = v
		s.mu.Unlock()
		close(s.ready)
		stored = true
	})
	return stored
}

// Ready is closed once a value has been stored
func (s *Slot[T]) Ready() <-chan struct{} {
	return s.ready
}

// IsSet reports whether a value has been stored
func (s *Slot[T]) IsSet() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Take returns the stored value and empties the slot.
// It returns false if nothing has been stored or the value was already taken.
func (s *Slot[T]) Take() (T, bool) {
	var zero T
	if !s.IsSet() {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taken {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.taken = true
	return v, true
}
