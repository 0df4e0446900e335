// Copyright 2020 Staysail Systems, Inc. <info@staysail.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

var (
	// ErrNoProvider means the contract is defined but nothing provides it.
	ErrNoProvider = errors.New("no provider registered")

	// ErrScopeDisposed is returned by Get after Dispose.
	ErrScopeDisposed = errors.New("scope disposed")

	// ErrCycle is returned when providers depend on each other.
	ErrCycle = errors.New("dependency cycle")
)

// Scope bounds the lifetime of the implementation instances created
// while serving one request.  A scope belongs to a single worker and
// is not safe for concurrent use.
type Scope struct {
	registry  *Registry
	instances map[string]interface{}
	pending   map[string]bool
	closers   []io.Closer
	disposed  bool
}

// Get returns the instance for the contract id, creating it on first
// use.  Instances implementing io.Closer are closed by Dispose, most
// recently created first.
func (s *Scope) Get(id string) (interface{}, error) {
	if s.disposed {
		return nil, ErrScopeDisposed
	}
	if obj, ok := s.instances[id]; ok {
		return obj, nil
	}
	if _, ok := s.registry.Contract(id); !ok {
		return nil, fmt.Errorf("contract %s not defined", id)
	}
	p, ok := s.registry.provider(id)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoProvider, id)
	}

	if s.pending == nil {
		s.pending = make(map[string]bool)
	}
	if s.pending[id] {
		return nil, fmt.Errorf("%w at %s", ErrCycle, id)
	}
	obj, err := s.create(id, p)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoProvider, id)
	}

	if sh, ok := obj.(shared); ok {
		obj = sh.obj
	} else if c, ok := obj.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	s.instances[id] = obj
	return obj, nil
}

// create runs the provider with id marked pending, so a provider that
// asks for itself is caught.  The mark is cleared even if it panics.
func (s *Scope) create(id string, p Provider) (interface{}, error) {
	s.pending[id] = true
	defer delete(s.pending, id)
	return p(s)
}

// Dispose releases every instance the scope owns.  It is safe to call
// more than once; only the first call does anything.
func (s *Scope) Dispose() error {
	if s.disposed {
		return nil
	}
	s.disposed = true

	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil
	s.instances = nil
	return err
}
