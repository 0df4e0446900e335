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
	"sort"
	"sync"
)

// Provider creates the implementation of a contract within a scope.
// It may obtain its own dependencies from the same scope.  Returning a
// nil interface means no implementation is available.  A typed nil
// pointer is not detected and reaches the method as its receiver.
type Provider func(s *Scope) (interface{}, error)

// Registry maps contract identifiers to contracts and providers.  It is
// filled at startup and only read while serving, so lookups from many
// workers are safe.
type Registry struct {
	lock      sync.RWMutex
	contracts map[string]*Contract
	providers map[string]Provider
}

// NewRegistry allocates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]*Contract),
		providers: make(map[string]Provider),
	}
}

// Define registers a contract.  Redefining an identifier is an error.
func (r *Registry) Define(c *Contract) error {
	if c == nil || c.id == "" {
		return errors.New("missing contract id")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.contracts[c.id]; ok {
		return fmt.Errorf("contract %s already defined", c.id)
	}
	r.contracts[c.id] = c
	return nil
}

// Provide registers the provider for a defined contract.  This
// overwrites any prior provider.
func (r *Registry) Provide(id string, p Provider) error {
	if p == nil {
		return errors.New("missing provider")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.contracts[id]; !ok {
		return fmt.Errorf("contract %s not defined", id)
	}
	r.providers[id] = p
	return nil
}

// ProvideInstance registers a provider that always returns obj.  The
// instance outlives every scope, so it is never closed by one.
func (r *Registry) ProvideInstance(id string, obj interface{}) error {
	return r.Provide(id, func(*Scope) (interface{}, error) {
		return shared{obj}, nil
	})
}

// shared marks instances not owned by the scope.
type shared struct {
	obj interface{}
}

// Register defines a contract and its provider in one step.
func (r *Registry) Register(c *Contract, p Provider) error {
	if err := r.Define(c); err != nil {
		return err
	}
	return r.Provide(c.id, p)
}

// Contract looks up a contract by identifier.
func (r *Registry) Contract(id string) (*Contract, bool) {
	r.lock.RLock()
	c, ok := r.contracts[id]
	r.lock.RUnlock()
	return c, ok
}

func (r *Registry) provider(id string) (Provider, bool) {
	r.lock.RLock()
	p, ok := r.providers[id]
	r.lock.RUnlock()
	return p, ok
}

// Contracts returns the sorted contract identifiers.
func (r *Registry) Contracts() []string {
	r.lock.RLock()
	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	r.lock.RUnlock()
	sort.Strings(ids)
	return ids
}

// Methods returns every "<contract>.<method>" name, sorted.
func (r *Registry) Methods() []string {
	r.lock.RLock()
	names := make([]string, 0, len(r.contracts))
	for id, c := range r.contracts {
		for _, m := range c.order {
			names = append(names, id+"."+m)
		}
	}
	r.lock.RUnlock()
	sort.Strings(names)
	return names
}

// NewScope creates a fresh request scope.
func (r *Registry) NewScope() *Scope {
	return &Scope{
		registry:  r,
		instances: make(map[string]interface{}),
	}
}
