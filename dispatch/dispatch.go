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

// Package dispatch drives a single request through resolution,
// argument conversion and invocation, and turns the outcome into a
// response.
package dispatch

import (
	"context"
	"fmt"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/convert"
	"go.nanomsg.org/ipcsvc/internal/logging"
	"go.nanomsg.org/ipcsvc/service"
)

// Dispatcher maps requests to responses.  It holds no per-request
// state and may be shared by any number of workers.
type Dispatcher struct {
	logger logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.  A nil logger is ignored.
func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logging.OrNull(l)
	}
}

// New allocates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: logging.NewNullLogger()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch serves one request within the given scope.  It never
// returns nil and never panics; every failure becomes a failed
// response.  There are no retries.
func (d *Dispatcher) Dispatch(ctx context.Context, req *ipcsvc.Request, scope *service.Scope) (out *ipcsvc.Response) {
	// Providers and parameter types are user code too.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("dispatch of %s.%s panicked: %v", req.Service, req.Method, r)
			out = ipcsvc.Fail(ipcsvc.Internal(fmt.Errorf("%v", r)))
		}
	}()

	if req == nil {
		return ipcsvc.Fail(ipcsvc.NewError(ipcsvc.KindInvalidRequest, "invalid request: empty"))
	}

	impl, m, rerr := service.Resolve(scope, req.Service, req.Method)
	if rerr != nil {
		if rerr.Cause != nil {
			d.logger.Debugf("resolving %s.%s: %v", req.Service, req.Method, rerr.Cause)
		}
		return ipcsvc.Fail(rerr)
	}

	if len(req.Parameters) != len(m.Params) {
		return ipcsvc.Fail(ipcsvc.ParameterMismatch(req.Service, req.Method, len(m.Params), len(req.Parameters)))
	}

	args := make([]interface{}, len(m.Params))
	for i, p := range m.Params {
		v, ok := convert.Convert(req.Parameters[i], p.Type)
		if !ok {
			e := ipcsvc.ConversionFailure(p.Name, i+1, req.Parameters[i], p.Type.Name())
			e.Service = req.Service
			e.Method = req.Method
			return ipcsvc.Fail(e)
		}
		args[i] = v
	}

	if m.Result == service.Deferred {
		return ipcsvc.Fail(ipcsvc.UnsupportedResult(req.Service, req.Method))
	}

	res, err := invoke(ctx, m, impl, args)
	if err != nil {
		d.logger.Debugf("%s.%s failed: %v", req.Service, req.Method, err)
		return ipcsvc.Fail(ipcsvc.Internal(err))
	}
	if _, ok := res.(ipcsvc.Deferred); ok {
		return ipcsvc.Fail(ipcsvc.UnsupportedResult(req.Service, req.Method))
	}
	if m.Result == service.Void {
		res = nil
	}
	return ipcsvc.Succeed(res)
}

// invoke calls the method, turning a panic into an error.
func invoke(ctx context.Context, m *service.Method, impl interface{}, args []interface{}) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return m.Call(ctx, impl, args)
}
