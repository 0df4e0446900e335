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

package ipcsvc

// The definitions in this file relate to request/response (i.e. RPC.)

// Version is the only protocol version understood on the wire.
const Version = 1

// Request represents a request object over the wire.  It is not
// modified after it has been decoded.
type Request struct {
	// Service identifies the contract, e.g. "ICalc".
	Service string `msgpack:"service"`

	// Method name, matched exactly against the contract.
	Method string `msgpack:"method"`

	// Parameters are loosely typed, in declaration order.
	Parameters []interface{} `msgpack:"params,omitempty"`
}

// Response represents a response to a request.  Exactly one of Value
// or Error is meaningful, as selected by Success.
type Response struct {
	// Success is true on success, false on failure.
	Success bool `msgpack:"success"`

	// Value is the result of the method.  It is nil for a method
	// that returns Void, and always nil if Success is false.
	Value interface{} `msgpack:"value,omitempty"`

	// Error object must be present if Success is false, and
	// must NOT be present if Success is true.
	Error *Error `msgpack:"-"`
}

// Succeed builds a successful response.  A Void value is carried as nil.
func Succeed(v interface{}) *Response {
	if _, ok := v.(Void); ok {
		v = nil
	}
	if _, ok := v.(*Void); ok {
		v = nil
	}
	return &Response{Success: true, Value: v}
}

// Fail builds a failed response.  A nil error still yields a failure.
func Fail(e error) *Response {
	if e == nil {
		e = NewError(KindUnspecified, "unspecified error")
	}
	return &Response{Success: false, Error: ErrorWrap(e)}
}

// FailureMessage returns the wire message of a failed response.
func (r *Response) FailureMessage() string {
	if r.Success || r.Error == nil {
		return ""
	}
	return r.Error.Error()
}
