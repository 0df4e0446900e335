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

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.  The set is closed; every
// failure a request can produce maps to exactly one of these.
type Kind int

// Error kinds.  The first set are defined by JSON-RPC, and we use the
// same values.  We also insert our own specific values in the range
// allocated for that (starting at -32000).
const (
	KindParse                  Kind = -32700
	KindInvalidRequest         Kind = -32600
	KindMethodNotFound         Kind = -32601
	KindParameterMismatch      Kind = -32602
	KindInternal               Kind = -32603
	KindUnspecified            Kind = -32000
	KindBadVersion             Kind = -32001
	KindContractNotFound       Kind = -32002
	KindImplementationNotFound Kind = -32003
	KindConversionFailure      Kind = -32004
	KindUnsupportedResult      Kind = -32005
	KindTransport              Kind = -32006
)

var kindNames = map[Kind]string{
	KindParse:                  "parse error",
	KindInvalidRequest:         "invalid request",
	KindMethodNotFound:         "method not found",
	KindParameterMismatch:      "parameter mismatch",
	KindInternal:               "internal error",
	KindUnspecified:            "unspecified error",
	KindBadVersion:             "bad version",
	KindContractNotFound:       "contract not found",
	KindImplementationNotFound: "implementation not found",
	KindConversionFailure:      "conversion failure",
	KindUnsupportedResult:      "unsupported result",
	KindTransport:              "transport error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error %d", int(k))
}

// Sentinels usable with errors.Is.  Any *Error of the same Kind matches.
var (
	ErrParse                  = &Error{Kind: KindParse}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
	ErrMethodNotFound         = &Error{Kind: KindMethodNotFound}
	ErrParameterMismatch      = &Error{Kind: KindParameterMismatch}
	ErrInternal               = &Error{Kind: KindInternal}
	ErrBadVersion             = &Error{Kind: KindBadVersion}
	ErrContractNotFound       = &Error{Kind: KindContractNotFound}
	ErrImplementationNotFound = &Error{Kind: KindImplementationNotFound}
	ErrConversionFailure      = &Error{Kind: KindConversionFailure}
	ErrUnsupportedResult      = &Error{Kind: KindUnsupportedResult}
	ErrTransport              = &Error{Kind: KindTransport}
)

// Error is a failure produced while serving a request.  It carries the
// structured context of the failure; Error() renders the single
// human readable message that travels over the wire.
type Error struct {
	Kind    Kind
	Message string

	Service    string
	Method     string
	Param      string
	Position   int
	Value      interface{}
	SourceType string
	TargetType string

	Cause error
}

func (z *Error) Error() string {
	if z.Message != "" {
		return z.Message
	}
	switch z.Kind {
	case KindContractNotFound:
		return fmt.Sprintf("contract '%s' not found", z.Service)
	case KindImplementationNotFound:
		return fmt.Sprintf("no implementation of contract '%s' found", z.Service)
	case KindMethodNotFound:
		return fmt.Sprintf("method '%s' not found in contract '%s'", z.Method, z.Service)
	case KindConversionFailure:
		return fmt.Sprintf("cannot convert value of parameter '%s' (#%d) (%v) from %s to %s",
			z.Param, z.Position, z.Value, z.SourceType, z.TargetType)
	case KindUnsupportedResult:
		return fmt.Sprintf("deferred result of '%s.%s' is not supported", z.Service, z.Method)
	case KindBadVersion:
		return "bad version (must be 1)"
	case KindInternal:
		if z.Cause != nil {
			return "internal error: " + z.Cause.Error()
		}
		return "internal error"
	}
	if z.Cause != nil {
		return z.Kind.String() + ": " + z.Cause.Error()
	}
	return z.Kind.String()
}

// Unwrap provides for the go 1.13 unwrap operation on errors.
func (z *Error) Unwrap() error {
	return z.Cause
}

// Is reports a match on Kind, so the package sentinels work with errors.Is.
func (z *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == z.Kind
}

// NewError is used to generate a new error object with a fixed message.
func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// ContractNotFound reports an unknown service identifier.
func ContractNotFound(service string) *Error {
	return &Error{Kind: KindContractNotFound, Service: service}
}

// ImplementationNotFound reports a known contract with nothing
// registered to provide it.
func ImplementationNotFound(service string, cause error) *Error {
	return &Error{Kind: KindImplementationNotFound, Service: service, Cause: cause}
}

// MethodNotFound reports an unknown method on a resolved contract.
func MethodNotFound(service, method string) *Error {
	return &Error{Kind: KindMethodNotFound, Service: service, Method: method}
}

// ParameterMismatch reports an arity mismatch.
func ParameterMismatch(service, method string, want, got int) *Error {
	return &Error{
		Kind:    KindParameterMismatch,
		Service: service,
		Method:  method,
		Message: fmt.Sprintf("parameter mismatch: '%s.%s' takes %d parameters, got %d",
			service, method, want, got),
	}
}

// ConversionFailure reports a parameter whose value cannot be converted.
// Position is one based.
func ConversionFailure(param string, position int, value interface{}, target string) *Error {
	return &Error{
		Kind:       KindConversionFailure,
		Param:      param,
		Position:   position,
		Value:      value,
		SourceType: TypeName(value),
		TargetType: target,
	}
}

// UnsupportedResult reports a method whose result is deferred.
func UnsupportedResult(service, method string) *Error {
	return &Error{Kind: KindUnsupportedResult, Service: service, Method: method}
}

// Internal wraps a failure raised by the invoked method.  Only the
// message of the cause is rendered.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Cause: cause}
}

// ErrorWrap converts an arbitrary error into an *Error, keeping the
// original if it already is one.
func ErrorWrap(e error) *Error {
	var z *Error
	if errors.As(e, &z) {
		return z
	}
	return &Error{
		Kind:    KindUnspecified,
		Message: e.Error(),
		Cause:   e,
	}
}

// TypeName returns the short name of the dynamic type of v, or "nil".
func TypeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
