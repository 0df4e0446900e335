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

// Package convert turns loosely typed decoded values into the values a
// method parameter expects.
//
// Parameters arrive from the wire as whatever the decoder produced:
// sized integers, floats, strings, byte slices, arrays and maps.  Each
// parameter declares a Type, and the Type decides whether (and how) a
// given value can become what the method wants.  Conversion never
// fails with an error; it reports success with a boolean.
//
// New target types are added by implementing Type, or with Func.
package convert

// Type is a conversion target.
type Type interface {
	// Name is used in failure messages, e.g. "int".
	Name() string

	// Convert returns the converted value, or false if v cannot
	// be represented as this type.
	Convert(v interface{}) (interface{}, bool)
}

// Convert converts v to t.  A nil Type accepts anything unchanged.
func Convert(v interface{}, t Type) (interface{}, bool) {
	if t == nil {
		return v, true
	}
	return t.Convert(v)
}

type funcType struct {
	name string
	fn   func(interface{}) (interface{}, bool)
}

func (f *funcType) Name() string { return f.name }

func (f *funcType) Convert(v interface{}) (interface{}, bool) {
	return f.fn(v)
}

// Func makes a Type from a plain function.
func Func(name string, fn func(interface{}) (interface{}, bool)) Type {
	return &funcType{name: name, fn: fn}
}

type anyType struct{}

func (anyType) Name() string { return "any" }

func (anyType) Convert(v interface{}) (interface{}, bool) { return v, true }

// Any passes every value, including nil, through unchanged.
var Any Type = anyType{}

type nullable struct {
	t Type
}

func (n *nullable) Name() string { return n.t.Name() + "?" }

func (n *nullable) Convert(v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, true
	}
	return n.t.Convert(v)
}

// Nullable accepts nil in addition to whatever t accepts.
func Nullable(t Type) Type {
	return &nullable{t: t}
}
