package dummystore

import (
	"context"
	"sync"

	"github.com/trezcool/karibu/core/registry"
)

// Store is an in-memory registry.Store for tests. ReadErr/WriteErr inject
// failures; FailWrites fails that many subsequent writes then clears itself.
type Store struct {
	sync.RWMutex
	reg         registry.Registry
	initialized bool

	ReadErr    error
	WriteErr   error
	FailWrites int
	Reads      int
	Writes     int
}

var _ registry.Store = (*Store)(nil) // interface compliance check

func Open() *Store {
	return &Store{}
}

func (s *Store) ReadRegistry(_ context.Context) (registry.Registry, error) {
	s.Lock()
	defer s.Unlock()

	s.Reads++
	if s.ReadErr != nil {
		return registry.Registry{}, s.ReadErr
	}
	if !s.initialized {
		s.reg = registry.Default()
		s.initialized = true
	}
	return s.reg, nil
}

func (s *Store) WriteRegistry(_ context.Context, reg registry.Registry) error {
	s.Lock()
	defer s.Unlock()

	s.Writes++
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if s.FailWrites > 0 {
		s.FailWrites--
		return errWriteContention
	}
	s.reg = reg
	s.initialized = true
	return nil
}

type contentionError struct{}

func (contentionError) Error() string { return "write contention" }

var errWriteContention = contentionError{}
