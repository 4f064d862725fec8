package heatmap

import "sync"

// deviceSet tracks live devices for logger propagation.
type deviceSet struct {
	mu  sync.Mutex
	set map[any]struct{}
}

func (s *deviceSet) add(d any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[any]struct{})
	}
	s.set[d] = struct{}{}
}

func (s *deviceSet) remove(d any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, d)
}

func (s *deviceSet) each(fn func(any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for d := range s.set {
		fn(d)
	}
}
