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

package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/convert"
	"go.nanomsg.org/ipcsvc/service"
)

// Counter is shared by every request.
type Counter struct {
	calls int64
}

func (c *Counter) Incr() int64 { return atomic.AddInt64(&c.calls, 1) }

func (c *Counter) Calls() int64 { return atomic.LoadInt64(&c.calls) }

// Calc is created for each request.  It counts the operations it
// performs on the shared counter.
type Calc struct {
	counter *Counter
}

func (c *Calc) Add(a, b int64) int64 {
	c.counter.Incr()
	return a + b
}

func (c *Calc) Divide(a, b int64) (int64, error) {
	c.counter.Incr()
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (c *Calc) Sum(vals []interface{}) float64 {
	c.counter.Incr()
	total := 0.0
	for _, v := range vals {
		total += v.(float64)
	}
	return total
}

func (c *Calc) Elapsed(since time.Time) time.Duration {
	c.counter.Incr()
	return time.Since(since)
}

func (c *Calc) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func counterContract() *service.Contract {
	return service.NewContract("ICounter").
		MustDefine(&service.Method{
			Name: "Calls",
			Call: func(_ context.Context, impl interface{}, _ []interface{}) (interface{}, error) {
				return impl.(*Counter).Calls(), nil
			},
		})
}

func calcContract() *service.Contract {
	two := []service.Param{service.P("a", convert.Int64), service.P("b", convert.Int64)}
	return service.NewContract("ICalc").
		MustDefine(&service.Method{
			Name:   "Add",
			Params: two,
			Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
				return impl.(*Calc).Add(args[0].(int64), args[1].(int64)), nil
			},
		}).
		MustDefine(&service.Method{
			Name:   "Divide",
			Params: two,
			Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
				return impl.(*Calc).Divide(args[0].(int64), args[1].(int64))
			},
		}).
		MustDefine(&service.Method{
			Name:   "Sum",
			Params: []service.Param{service.P("values", convert.SliceOf(convert.Float64))},
			Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
				return impl.(*Calc).Sum(args[0].([]interface{})), nil
			},
		}).
		MustDefine(&service.Method{
			Name:   "Elapsed",
			Params: []service.Param{service.P("since", convert.Time)},
			Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
				return impl.(*Calc).Elapsed(args[0].(time.Time)).String(), nil
			},
		}).
		MustDefine(&service.Method{
			Name:   "Sleep",
			Params: []service.Param{service.P("duration", convert.Duration)},
			Result: service.Void,
			Call: func(ctx context.Context, impl interface{}, args []interface{}) (interface{}, error) {
				return ipcsvc.Void{}, impl.(*Calc).Sleep(ctx, args[0].(time.Duration))
			},
		})
}

// registerCalc wires the demo contracts into r.  ICalc resolves its
// ICounter dependency from the request scope.
func registerCalc(r *service.Registry) (*Counter, error) {
	counter := &Counter{}
	if err := r.Define(counterContract()); err != nil {
		return nil, err
	}
	if err := r.ProvideInstance("ICounter", counter); err != nil {
		return nil, err
	}
	err := r.Register(calcContract(), func(s *service.Scope) (interface{}, error) {
		c, err := s.Get("ICounter")
		if err != nil {
			return nil, err
		}
		return &Calc{counter: c.(*Counter)}, nil
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}
