// Package storage persists named script libraries that a host
// runtime can require.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// NotFound is returned (possibly wrapped) when a library doesn't
// exist.
var NotFound = errors.New("library not found")

// Library is a named chunk of script source.
type Library struct {
	Name    string    `json:"name" yaml:"name"`
	Source  string    `json:"source" yaml:"source"`
	Updated time.Time `json:"updated" yaml:"updated"`
}

// Store is a persistence interface for Libraries.
type Store interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// Put creates or replaces a library.
	Put(ctx context.Context, lib *Library) error

	// Get returns the named library or an error wrapping NotFound.
	Get(ctx context.Context, name string) (*Library, error)

	// List returns the names of all libraries in order.
	List(ctx context.Context) ([]string, error)

	// Rem removes the named library.  Removing a library that
	// doesn't exist is not an error.
	Rem(ctx context.Context, name string) error
}

// CheckName protests an empty library name.
func CheckName(name string) error {
	if name == "" {
		return errors.New("empty library name")
	}
	return nil
}

// MemStore is an in-memory Store.
type MemStore struct {
	sync.RWMutex
	libs map[string]*Library
}

func NewMemStore() *MemStore {
	return &MemStore{
		libs: make(map[string]*Library),
	}
}

func (s *MemStore) Open(ctx context.Context) error {
	return nil
}

func (s *MemStore) Close(ctx context.Context) error {
	return nil
}

func (s *MemStore) Put(ctx context.Context, lib *Library) error {
	if err := CheckName(lib.Name); err != nil {
		return err
	}
	l := *lib
	if l.Updated.IsZero() {
		l.Updated = time.Now().UTC()
	}
	s.Lock()
	s.libs[l.Name] = &l
	s.Unlock()
	return nil
}

func (s *MemStore) Get(ctx context.Context, name string) (*Library, error) {
	s.RLock()
	lib, have := s.libs[name]
	s.RUnlock()
	if !have {
		return nil, fmt.Errorf("%s: %w", name, NotFound)
	}
	l := *lib
	return &l, nil
}

func (s *MemStore) List(ctx context.Context) ([]string, error) {
	s.RLock()
	acc := make([]string, 0, len(s.libs))
	for name := range s.libs {
		acc = append(acc, name)
	}
	s.RUnlock()
	sort.Strings(acc)
	return acc, nil
}

func (s *MemStore) Rem(ctx context.Context, name string) error {
	s.Lock()
	delete(s.libs, name)
	s.Unlock()
	return nil
}
