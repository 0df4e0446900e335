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
	"context"
	"errors"
	"fmt"

	"go.nanomsg.org/ipcsvc/convert"
)

// ErrDuplicateMethod is returned when a contract already has a method
// with the same name.  Overloads are not supported.
var ErrDuplicateMethod = errors.New("duplicate method")

// Result describes what a method produces.
type Result int

const (
	// Value methods return a payload.
	Value Result = iota
	// Void methods return nothing; the payload is nil.
	Void
	// Deferred methods produce their result asynchronously.  They
	// can be declared, but dispatching them always fails.
	Deferred
)

// Param is one declared method parameter.
type Param struct {
	Name string
	Type convert.Type
}

// P is shorthand for a Param.
func P(name string, t convert.Type) Param {
	return Param{Name: name, Type: t}
}

// Invoker calls the method on impl with already converted arguments.
// args has exactly one element per declared parameter, each of which
// is the value produced by that parameter's Type.
type Invoker func(ctx context.Context, impl interface{}, args []interface{}) (interface{}, error)

// Method is an entry in the dispatch table of a contract.
type Method struct {
	Name   string
	Params []Param
	Result Result
	Call   Invoker
}

// Contract is a named set of methods.  A contract is built once at
// registration time and is read only afterwards.
type Contract struct {
	id      string
	methods map[string]*Method
	order   []string
}

// NewContract creates an empty contract with the given identifier.
func NewContract(id string) *Contract {
	return &Contract{
		id:      id,
		methods: make(map[string]*Method),
	}
}

// ID returns the contract identifier.
func (c *Contract) ID() string {
	return c.id
}

// Define adds a method.
func (c *Contract) Define(m *Method) error {
	if m == nil || m.Name == "" {
		return errors.New("missing method name")
	}
	if m.Call == nil {
		return fmt.Errorf("method %s.%s has no invoker", c.id, m.Name)
	}
	if _, ok := c.methods[m.Name]; ok {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateMethod, c.id, m.Name)
	}
	for i, p := range m.Params {
		if p.Type == nil {
			return fmt.Errorf("method %s.%s: parameter %d has no type", c.id, m.Name, i+1)
		}
	}
	c.methods[m.Name] = m
	c.order = append(c.order, m.Name)
	return nil
}

// MustDefine is like Define, but panics on error.  It is meant for
// static contract tables.
func (c *Contract) MustDefine(m *Method) *Contract {
	if err := c.Define(m); err != nil {
		panic(err)
	}
	return c
}

// Method looks up a method by exact name.
func (c *Contract) Method(name string) (*Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// Methods returns the method names in definition order.
func (c *Contract) Methods() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}
