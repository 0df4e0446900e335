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

package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/convert"
	"go.nanomsg.org/ipcsvc/rpc"
	"go.nanomsg.org/ipcsvc/rpc/client"
	"go.nanomsg.org/ipcsvc/service"
)

type Calc struct {
	closed *int32
}

func (c *Calc) Add(a, b int) int { return a + b }

func (c *Calc) Divide(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (c *Calc) Close() error {
	atomic.AddInt32(c.closed, 1)
	return nil
}

func calcContract() *service.Contract {
	c := service.NewContract("ICalc")
	c.MustDefine(&service.Method{
		Name:   "Add",
		Params: []service.Param{service.P("a", convert.Int), service.P("b", convert.Int)},
		Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
			return impl.(*Calc).Add(args[0].(int), args[1].(int)), nil
		},
	})
	c.MustDefine(&service.Method{
		Name:   "Divide",
		Params: []service.Param{service.P("a", convert.Int), service.P("b", convert.Int)},
		Call: func(_ context.Context, impl interface{}, args []interface{}) (interface{}, error) {
			return impl.(*Calc).Divide(args[0].(int), args[1].(int))
		},
	})
	c.MustDefine(&service.Method{
		Name:   "Later",
		Result: service.Deferred,
		Call: func(context.Context, interface{}, []interface{}) (interface{}, error) {
			return nil, nil
		},
	})
	return c
}

type fixture struct {
	created int32
	closed  int32
}

func makePair(t *testing.T, url string, f *fixture, opts ...interface{}) (Server, client.Client) {
	srv := NewServer(nil)
	cli := client.NewClient()

	require.NoError(t, srv.SetOption(opts...))
	require.NoError(t, srv.Register(calcContract(), func(*service.Scope) (interface{}, error) {
		atomic.AddInt32(&f.created, 1)
		return &Calc{closed: &f.closed}, nil
	}))
	require.NoError(t, srv.Listen(url))

	srv.ServeAsync(3)

	require.NoError(t, cli.Dial(url))
	time.Sleep(time.Millisecond * 20) // give time for settling
	return srv, cli
}

func callCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustFailAs(t *testing.T, e error, kind ipcsvc.Kind) *ipcsvc.Error {
	require.Error(t, e)
	var z *ipcsvc.Error
	require.True(t, errors.As(e, &z), "expected our error but got %v", e)
	assert.Equal(t, kind, z.Kind)
	return z
}

func TestRpcBasic(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_basic", f)
	defer srv.Close()
	defer cli.Close()

	var res int
	require.NoError(t, cli.Call(callCtx(t), "ICalc", "Add", &res, 2, 3))
	assert.Equal(t, 5, res)

	// Text is converted to the declared parameter type.
	require.NoError(t, cli.Call(callCtx(t), "ICalc", "Add", &res, "40", 2))
	assert.Equal(t, 42, res)

	// Every request gets its own scope, disposed before the reply.
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.created))
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.closed))
}

func TestRpcNotFound(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_not_found", f)
	defer srv.Close()
	defer cli.Close()

	e := cli.Call(callCtx(t), "ICalc", "Subtract", nil, 1, 2)
	z := mustFailAs(t, e, ipcsvc.KindMethodNotFound)
	assert.Equal(t, "method 'Subtract' not found in contract 'ICalc'", z.Message)

	e = cli.Call(callCtx(t), "IMissing", "Add", nil)
	mustFailAs(t, e, ipcsvc.KindContractNotFound)
	assert.Contains(t, e.Error(), "IMissing")
}

func TestRpcParameterFailures(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_params", f)
	defer srv.Close()
	defer cli.Close()

	e := cli.Call(callCtx(t), "ICalc", "Add", nil, 1)
	z := mustFailAs(t, e, ipcsvc.KindParameterMismatch)
	assert.Equal(t, "parameter mismatch: 'ICalc.Add' takes 2 parameters, got 1", z.Message)

	e = cli.Call(callCtx(t), "ICalc", "Add", nil, 1, "two")
	mustFailAs(t, e, ipcsvc.KindConversionFailure)
	assert.Contains(t, e.Error(), "'b'")
}

func TestRpcMethodFails(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_fails", f)
	defer srv.Close()
	defer cli.Close()

	e := cli.Call(callCtx(t), "ICalc", "Divide", nil, 1, 0)
	z := mustFailAs(t, e, ipcsvc.KindInternal)
	assert.Equal(t, "internal error: divide by zero", z.Message)

	e = cli.Call(callCtx(t), "ICalc", "Later", nil)
	mustFailAs(t, e, ipcsvc.KindUnsupportedResult)

	// The server keeps serving after failures.
	var res int
	require.NoError(t, cli.Call(callCtx(t), "ICalc", "Divide", &res, 9, 3))
	assert.Equal(t, 3, res)
}

func TestRpcBuiltins(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_builtins", f)
	defer srv.Close()
	defer cli.Close()

	var echo string
	require.NoError(t, cli.Call(callCtx(t), BuiltinContract, "Ping", &echo, "hello"))
	assert.Equal(t, "hello", echo)

	var methods []string
	require.NoError(t, cli.Call(callCtx(t), BuiltinContract, "Methods", &methods))
	assert.Contains(t, methods, "ICalc.Add")
	assert.Contains(t, methods, "_rpc.Ping")

	var contracts []string
	require.NoError(t, cli.Call(callCtx(t), BuiltinContract, "Contracts", &contracts))
	assert.Equal(t, []string{"ICalc", "_rpc"}, contracts)

	var now int64
	require.NoError(t, cli.Call(callCtx(t), BuiltinContract, "Time", &now))
	assert.InDelta(t, time.Now().UnixNano(), now, float64(time.Minute))
}

func TestRpcBadRequest(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_bad_request", f)
	defer srv.Close()
	defer cli.Close()

	sock, err := req.NewSocket()
	require.NoError(t, err)
	defer sock.Close()
	require.NoError(t, sock.SetOption(mangos.OptionRecvDeadline, time.Second))
	require.NoError(t, sock.Dial("inproc:///rpc_bad_request"))

	require.NoError(t, sock.Send([]byte("not msgpack")))
	b, err := sock.Recv()
	require.NoError(t, err)
	_, err = rpc.DecodeResponse(b)
	mustFailAs(t, err, ipcsvc.KindParse)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.created))
}

func TestRpcRateLimit(t *testing.T) {
	f := &fixture{}
	srv, cli := makePair(t, "inproc:///rpc_rate", f, OptionRateLimit{PerSecond: 1000, Burst: 2})
	defer srv.Close()
	defer cli.Close()

	var res int
	for i := 0; i < 5; i++ {
		require.NoError(t, cli.Call(callCtx(t), "ICalc", "Add", &res, i, 1))
		assert.Equal(t, i+1, res)
	}
}

func TestRpcCallCanceled(t *testing.T) {
	cli := client.NewClient()
	defer cli.Close()
	require.NoError(t, cli.Dial("inproc:///rpc_nobody_home", OptionDialAsync(true)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()
	e := cli.Call(ctx, "ICalc", "Add", nil, 1, 2)
	assert.True(t, errors.Is(e, context.DeadlineExceeded), "%v", e)
}

func TestRpcCloseStopsServe(t *testing.T) {
	srv := NewServer(nil)
	require.NoError(t, srv.Listen("inproc:///rpc_close"))

	done := make(chan struct{})
	go func() {
		srv.Serve()
		close(done)
	}()
	time.Sleep(time.Millisecond * 20)
	srv.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestServerOptions(t *testing.T) {
	srv := NewServer(nil)
	defer srv.Close()

	assert.NoError(t, srv.SetOption(OptionName("calc"), OptionRateLimit{PerSecond: 0}))
	assert.Error(t, srv.SetOption("bogus"))
	assert.Error(t, srv.Listen("bogus://nowhere"))

	// Two servers may share one registry; the built ins are defined once.
	other := NewServer(srv.Registry())
	defer other.Close()
	_, ok := other.Registry().Contract(BuiltinContract)
	assert.True(t, ok)
}
