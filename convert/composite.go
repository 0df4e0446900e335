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

type sliceOf struct {
	elem Type
}

func (s *sliceOf) Name() string { return "[]" + s.elem.Name() }

func (s *sliceOf) Convert(v interface{}) (interface{}, bool) {
	var in []interface{}
	switch x := v.(type) {
	case []interface{}:
		in = x
	case []string:
		in = make([]interface{}, len(x))
		for i := range x {
			in[i] = x[i]
		}
	case []int:
		in = make([]interface{}, len(x))
		for i := range x {
			in[i] = x[i]
		}
	default:
		return nil, false
	}
	out := make([]interface{}, len(in))
	for i := range in {
		e, ok := s.elem.Convert(in[i])
		if !ok {
			return nil, false
		}
		out[i] = e
	}
	return out, true
}

// SliceOf converts an array element by element.  The result is a
// []interface{} holding converted elements.
func SliceOf(elem Type) Type {
	return &sliceOf{elem: elem}
}

type mapOf struct {
	elem Type
}

func (m *mapOf) Name() string { return "map[string]" + m.elem.Name() }

func (m *mapOf) Convert(v interface{}) (interface{}, bool) {
	out := make(map[string]interface{})
	switch x := v.(type) {
	case map[string]interface{}:
		for k, e := range x {
			c, ok := m.elem.Convert(e)
			if !ok {
				return nil, false
			}
			out[k] = c
		}
	case map[interface{}]interface{}:
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			c, ok := m.elem.Convert(e)
			if !ok {
				return nil, false
			}
			out[ks] = c
		}
	default:
		return nil, false
	}
	return out, true
}

// MapOf converts a map with string keys value by value.  The result is
// a map[string]interface{}.
func MapOf(elem Type) Type {
	return &mapOf{elem: elem}
}
