package layman

import "sync"

// Store is the ordered, append-only list of layers of one dispatcher.
type Store struct {
	mu     sync.RWMutex
	layers []Layer
}

// Add appends l. A nil handler is replaced with a no-op.
func (s *Store) Add(l Layer) {
	if l.Handler == nil {
		l.Handler = noop
	}
	s.mu.Lock()
	s.layers = append(s.layers, l)
	s.mu.Unlock()
}

// Layers returns the current layers in registration order. The returned
// slice must not be modified.
func (s *Store) Layers() []Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layers[:len(s.layers):len(s.layers)]
}

// Len returns the number of registered layers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}
