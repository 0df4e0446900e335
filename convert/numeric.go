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

package convert

import (
	"math"
	"strconv"
	"strings"
)

// number is the common intermediate form.  Exactly one of the three
// representations is authoritative, as selected by kind.
type number struct {
	kind byte // 'i', 'u' or 'f'
	i    int64
	u    uint64
	f    float64
}

func toNumber(v interface{}) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{kind: 'i', i: int64(x)}, true
	case int8:
		return number{kind: 'i', i: int64(x)}, true
	case int16:
		return number{kind: 'i', i: int64(x)}, true
	case int32:
		return number{kind: 'i', i: int64(x)}, true
	case int64:
		return number{kind: 'i', i: x}, true
	case uint:
		return number{kind: 'u', u: uint64(x)}, true
	case uint8:
		return number{kind: 'u', u: uint64(x)}, true
	case uint16:
		return number{kind: 'u', u: uint64(x)}, true
	case uint32:
		return number{kind: 'u', u: uint64(x)}, true
	case uint64:
		return number{kind: 'u', u: x}, true
	case float32:
		return number{kind: 'f', f: float64(x)}, true
	case float64:
		return number{kind: 'f', f: x}, true
	case string:
		return parseNumber(x)
	}
	return number{}, false
}

func parseNumber(s string) (number, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return number{}, false
	}
	if i, e := strconv.ParseInt(s, 10, 64); e == nil {
		return number{kind: 'i', i: i}, true
	}
	if u, e := strconv.ParseUint(s, 10, 64); e == nil {
		return number{kind: 'u', u: u}, true
	}
	if f, e := strconv.ParseFloat(s, 64); e == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return number{kind: 'f', f: f}, true
	}
	return number{}, false
}

// asInt returns the value as an int64 if it is integral and in range.
func (n number) asInt() (int64, bool) {
	switch n.kind {
	case 'i':
		return n.i, true
	case 'u':
		if n.u > math.MaxInt64 {
			return 0, false
		}
		return int64(n.u), true
	case 'f':
		if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(n.f), true
	}
	return 0, false
}

func (n number) asUint() (uint64, bool) {
	switch n.kind {
	case 'i':
		if n.i < 0 {
			return 0, false
		}
		return uint64(n.i), true
	case 'u':
		return n.u, true
	case 'f':
		if n.f != math.Trunc(n.f) || n.f < 0 || n.f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(n.f), true
	}
	return 0, false
}

func (n number) asFloat() float64 {
	switch n.kind {
	case 'i':
		return float64(n.i)
	case 'u':
		return float64(n.u)
	}
	return n.f
}

type signed struct {
	name     string
	min, max int64
	wrap     func(int64) interface{}
}

func (s *signed) Name() string { return s.name }

func (s *signed) Convert(v interface{}) (interface{}, bool) {
	n, ok := toNumber(v)
	if !ok {
		return nil, false
	}
	i, ok := n.asInt()
	if !ok || i < s.min || i > s.max {
		return nil, false
	}
	return s.wrap(i), true
}

type unsigned struct {
	name string
	max  uint64
	wrap func(uint64) interface{}
}

func (u *unsigned) Name() string { return u.name }

func (u *unsigned) Convert(v interface{}) (interface{}, bool) {
	n, ok := toNumber(v)
	if !ok {
		return nil, false
	}
	x, ok := n.asUint()
	if !ok || x > u.max {
		return nil, false
	}
	return u.wrap(x), true
}

type floating struct {
	name string
	bits int
}

func (f *floating) Name() string { return f.name }

func (f *floating) Convert(v interface{}) (interface{}, bool) {
	n, ok := toNumber(v)
	if !ok {
		return nil, false
	}
	x := n.asFloat()
	if f.bits == 32 {
		if math.Abs(x) > math.MaxFloat32 {
			return nil, false
		}
		return float32(x), true
	}
	return x, true
}

// Numeric targets.  Integer targets accept any numeric value (or
// decimal text) that is integral and fits; float targets accept any
// finite number that fits.
var (
	Int   Type = &signed{"int", math.MinInt, math.MaxInt, func(i int64) interface{} { return int(i) }}
	Int8  Type = &signed{"int8", math.MinInt8, math.MaxInt8, func(i int64) interface{} { return int8(i) }}
	Int16 Type = &signed{"int16", math.MinInt16, math.MaxInt16, func(i int64) interface{} { return int16(i) }}
	Int32 Type = &signed{"int32", math.MinInt32, math.MaxInt32, func(i int64) interface{} { return int32(i) }}
	Int64 Type = &signed{"int64", math.MinInt64, math.MaxInt64, func(i int64) interface{} { return i }}

	Uint   Type = &unsigned{"uint", math.MaxUint, func(u uint64) interface{} { return uint(u) }}
	Uint8  Type = &unsigned{"uint8", math.MaxUint8, func(u uint64) interface{} { return uint8(u) }}
	Uint16 Type = &unsigned{"uint16", math.MaxUint16, func(u uint64) interface{} { return uint16(u) }}
	Uint32 Type = &unsigned{"uint32", math.MaxUint32, func(u uint64) interface{} { return uint32(u) }}
	Uint64 Type = &unsigned{"uint64", math.MaxUint64, func(u uint64) interface{} { return u }}

	Float32 Type = &floating{"float32", 32}
	Float64 Type = &floating{"float64", 64}
)
