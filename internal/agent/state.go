package agent

import "sync"

// State is a small in-memory key-value store shared by the pipeline stages.
type State struct {
	mu    sync.RWMutex
	store map[string]interface{}
}

func NewState() *State {
	return &State{store: make(map[string]interface{})}
}

func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.store[key]
	return v, ok
}

func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	s.store[key] = value
	s.mu.Unlock()
}

// Status returns a shallow copy of the store.
func (s *State) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]interface{}, len(s.store))
	for k, v := range s.store {
		snap[k] = v
	}
	return snap
}
