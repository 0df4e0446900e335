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
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"golang.org/x/time/rate"

	// import all the transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/convert"
	"go.nanomsg.org/ipcsvc/internal/logging"
	"go.nanomsg.org/ipcsvc/service"
)

// This relates to the RPC server.

type Server interface {

	// Dial is used to dial a remote client.  This may be called multiple
	// times.  It allows the normal server/client roles to be reversed
	// while still maintaining the REQ/REP higher level roles.
	Dial(url string, opts ...interface{}) error

	// Listen listens for clients on the given URL, for example
	// "ipc:///tmp/svc.sock" for a local socket (a named pipe on
	// Windows).  It may be called multiple times.
	Listen(url string, opts ...interface{}) error

	// SetOption sets global options on the server, such as the rate
	// limit or the logger.  Set these before serving.
	SetOption(opts ...interface{}) error

	// Close closes down the socket.  In-flight requests will be aborted
	// and serving workers return.
	Close()

	// Registry returns the contracts this server dispatches to.
	Registry() *service.Registry

	// Register defines a contract and the provider of its
	// implementation.
	Register(c *service.Contract, p service.Provider) error

	// Serve serves synchronously on the calling goroutine, one request
	// at a time, until the server is closed.
	Serve()

	// ServeAsync serves asynchronously, firing off the given number
	// of go routines, each handling its own sessions, in parallel.
	// It returns immediately.
	ServeAsync(workers int)
}

// BuiltinContract is the identifier of the contract every server
// exposes about itself.
const BuiltinContract = "_rpc"

// NewServer allocates a server instance dispatching to registry.  If
// registry is nil an empty one is created.
func NewServer(registry *service.Registry) Server {
	if registry == nil {
		registry = service.NewRegistry()
	}
	s := &rpcServer{
		name:     "ipcsvc",
		registry: registry,
		base:     logging.NewNullLogger(),
	}
	s.logger = s.base
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.socket, _ = rep.NewSocket()
	s.handler = NewHandler(registry, s.logger)
	s.registerBuiltins()
	return s
}

type rpcServer struct {
	socket   mangos.Socket
	registry *service.Registry
	ctx      context.Context
	cancel   context.CancelFunc

	lock    sync.Mutex
	name    string
	base    logging.Logger
	logger  logging.Logger
	handler *Handler
	limiter *rate.Limiter
	workers int
}

type OptionOther = ipcsvc.OptionOther
type OptionDialAsync = ipcsvc.OptionDialAsync
type OptionReconnectTime = ipcsvc.OptionReconnectTime
type OptionMaxReconnectTime = ipcsvc.OptionMaxReconnectTime
type OptionTLSConfig = ipcsvc.OptionTLSConfig
type OptionRateLimit = ipcsvc.OptionRateLimit
type Request = ipcsvc.Request
type Response = ipcsvc.Response
type Error = ipcsvc.Error
type Void = ipcsvc.Void

// OptionLogger sets the logger for the server.
type OptionLogger struct {
	Logger logging.Logger
}

// OptionName names the endpoint.  The name prefixes the worker tag in
// log lines.
type OptionName string

func (s *rpcServer) Registry() *service.Registry {
	return s.registry
}

func (s *rpcServer) Register(c *service.Contract, p service.Provider) error {
	return s.registry.Register(c, p)
}

func (s *rpcServer) Close() {
	s.cancel()
	_ = s.socket.Close()
}

func (s *rpcServer) SetOption(opts ...interface{}) error {
	for _, o := range opts {
		var e error
		switch v := o.(type) {
		case OptionOther:
			e = s.socket.SetOption(v.Name, v.Value)
		case OptionDialAsync:
			e = s.socket.SetOption(mangos.OptionDialAsynch, bool(v))
		case OptionReconnectTime:
			e = s.socket.SetOption(mangos.OptionReconnectTime, time.Duration(v))
		case OptionMaxReconnectTime:
			e = s.socket.SetOption(mangos.OptionMaxReconnectTime, time.Duration(v))
		case OptionTLSConfig:
			e = s.socket.SetOption(mangos.OptionTLSConfig, (*tls.Config)(v))
		case OptionRateLimit:
			s.lock.Lock()
			if v.PerSecond > 0 {
				burst := v.Burst
				if burst < 1 {
					burst = 1
				}
				s.limiter = rate.NewLimiter(rate.Limit(v.PerSecond), burst)
			} else {
				s.limiter = nil
			}
			s.lock.Unlock()
		case OptionLogger:
			s.lock.Lock()
			s.base = logging.OrNull(v.Logger)
			s.renameLocked()
			s.lock.Unlock()
		case OptionName:
			s.lock.Lock()
			s.name = string(v)
			s.renameLocked()
			s.lock.Unlock()
		default:
			e = errors.New("unknown option")
		}
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *rpcServer) Dial(url string, opts ...interface{}) error {
	d, e := s.socket.NewDialer(url, nil)
	if e != nil {
		return e
	}
	for _, o := range opts {
		switch v := o.(type) {
		case OptionOther:
			e = d.SetOption(v.Name, v.Value)
		case OptionDialAsync:
			e = d.SetOption(mangos.OptionDialAsynch, bool(v))
		case OptionReconnectTime:
			e = d.SetOption(mangos.OptionReconnectTime, time.Duration(v))
		case OptionMaxReconnectTime:
			e = d.SetOption(mangos.OptionMaxReconnectTime, time.Duration(v))
		case OptionTLSConfig:
			e = d.SetOption(mangos.OptionTLSConfig, (*tls.Config)(v))
		default:
			e = errors.New("unknown option")
		}
		if e != nil {
			return e
		}
	}
	return d.Dial()
}

func (s *rpcServer) Listen(url string, opts ...interface{}) error {
	l, e := s.socket.NewListener(url, nil)
	if e != nil {
		return e
	}
	for _, o := range opts {
		switch v := o.(type) {
		case OptionTLSConfig:
			e = l.SetOption(mangos.OptionTLSConfig, (*tls.Config)(v))
		case OptionOther:
			e = l.SetOption(v.Name, v.Value)
		default:
			e = errors.New("unknown option")
		}
		if e != nil {
			return e
		}
	}
	if e = l.Listen(); e != nil {
		return e
	}
	s.currentLogger().Infof("listening on %s", url)
	return nil
}

// renameLocked derives the endpoint logger from the base logger and
// the current name, whichever of the two was set last.
func (s *rpcServer) renameLocked() {
	s.logger = logging.Named(s.base, s.name)
	s.handler = NewHandler(s.registry, s.logger)
}

func (s *rpcServer) currentLogger() logging.Logger {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.logger
}

// snapshot returns what a worker needs, taken once when it starts.
func (s *rpcServer) snapshot() (string, *Handler, *rate.Limiter) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.workers++
	return fmt.Sprintf("%s/%d", s.name, s.workers), s.handler, s.limiter
}

func (s *rpcServer) ServeAsync(num int) {
	for i := 0; i < num; i++ {
		go func() {
			s.Serve()
		}()
	}
}

// Serve handles one session at a time: a fresh mangos context is opened
// for every request and closed once the response has been sent.
func (s *rpcServer) Serve() {
	name, h, limiter := s.snapshot()
	ctx := withWorker(s.ctx, name)

	for {
		if limiter != nil {
			if e := limiter.Wait(s.ctx); e != nil {
				return
			}
		}
		c, e := s.socket.OpenContext()
		if e != nil {
			// the only time this fails its due to closed socket.
			return
		}
		closed := h.Handle(ctx, c)
		_ = c.Close()
		if closed || s.ctx.Err() != nil {
			return
		}
	}
}

// Built in methods.
func (s *rpcServer) registerBuiltins() {
	c := service.NewContract(BuiltinContract)
	c.MustDefine(&service.Method{
		Name: "Methods",
		Call: func(context.Context, interface{}, []interface{}) (interface{}, error) {
			return s.registry.Methods(), nil
		},
	})
	c.MustDefine(&service.Method{
		Name: "Contracts",
		Call: func(context.Context, interface{}, []interface{}) (interface{}, error) {
			return s.registry.Contracts(), nil
		},
	})
	c.MustDefine(&service.Method{
		Name: "Time",
		Call: func(context.Context, interface{}, []interface{}) (interface{}, error) {
			return time.Now().UnixNano(), nil
		},
	})
	c.MustDefine(&service.Method{
		Name:   "Ping",
		Params: []service.Param{service.P("message", convert.String)},
		Call: func(_ context.Context, _ interface{}, args []interface{}) (interface{}, error) {
			return args[0], nil
		},
	})
	if e := s.registry.Define(c); e != nil {
		// Already defined by a server sharing this registry.
		return
	}
	_ = s.registry.ProvideInstance(BuiltinContract, s)
}
