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
	"strconv"
	"strings"
	"time"
)

// String accepts strings and byte slices.  Numbers are not silently
// turned into text.
var String = Func("string", func(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return nil, false
})

// Bool accepts booleans and the text forms understood by strconv.
var Bool = Func("bool", func(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, e := strconv.ParseBool(strings.TrimSpace(x))
		if e != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
})

// Bytes accepts byte slices and strings.
var Bytes = Func("[]byte", func(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
})

// Time accepts a time.Time, RFC 3339 text, or integral unix seconds.
var Time = Func("time.Time", func(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, e := time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
		if e != nil {
			return nil, false
		}
		return t, true
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, false
	}
	secs, ok := n.asInt()
	if !ok {
		return nil, false
	}
	return time.Unix(secs, 0).UTC(), true
})

// Duration accepts a time.Duration, Go duration text ("1.5s"), or
// integral nanoseconds.
var Duration = Func("time.Duration", func(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case time.Duration:
		return x, true
	case string:
		d, e := time.ParseDuration(strings.TrimSpace(x))
		if e != nil {
			return nil, false
		}
		return d, true
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, false
	}
	ns, ok := n.asInt()
	if !ok {
		return nil, false
	}
	return time.Duration(ns), true
})
