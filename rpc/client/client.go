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

package client

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"
	// import all the transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/rpc"
)

// This relates to the RPC rpcClient.

type Client interface {
	// Call invokes method on the contract service.  This runs
	// synchronously, and may be canceled via the context.  It is
	// possible for multiple outstanding calls to be posted this way.
	// The result is either nil (the caller does not care, or the method
	// is void), or a pointer that the returned value is decoded into.
	//
	// A failure reported by the server is returned as *ipcsvc.Error
	// carrying the server's code and message.
	Call(ctx context.Context, service, method string, result interface{}, params ...interface{}) error

	// Dial is used to dial a remote server.  This may be called multiple
	// times to dial to different servers.  If multiple connections are
	// present, then the rpcClient will automatically select the best
	// one based on readiness to service the request.
	Dial(url string, opts ...interface{}) error

	// Listen is much like dial, but acts as a server.  This allows
	// the normal server/rpcClient roles to be reversed while still
	// maintaining the REQ/REP higher level roles.
	Listen(url string, opts ...interface{}) error

	// SetOption sets global options on the rpcClient, such as retry times.
	SetOption(opts ...interface{}) error

	// Close closes down the socket.  In-flight requests will be aborted
	// and return accordingly.
	Close()
}

func NewClient() Client {
	c := &rpcClient{}
	c.socket, _ = req.NewSocket()
	return c
}

type rpcClient struct {
	socket mangos.Socket
}

func (c *rpcClient) Close() {
	_ = c.socket.Close()
}

// Re-export some names from the parent package.

type OptionOther = ipcsvc.OptionOther
type OptionDialAsync = ipcsvc.OptionDialAsync
type OptionReconnectTime = ipcsvc.OptionReconnectTime
type OptionMaxReconnectTime = ipcsvc.OptionMaxReconnectTime
type OptionTLSConfig = ipcsvc.OptionTLSConfig
type OptionRetryTime = ipcsvc.OptionRetryTime
type Void = ipcsvc.Void
type Error = ipcsvc.Error

// NB: We don't use the mangos timeout options.  Instead we rely on the
// context to provide a global timeout which encompasses both the send
// and the receive time.

func (c *rpcClient) SetOption(opts ...interface{}) error {
	for _, o := range opts {
		var e error
		switch v := o.(type) {
		case OptionOther:
			e = c.socket.SetOption(v.Name, v.Value)
		case OptionDialAsync:
			e = c.socket.SetOption(mangos.OptionDialAsynch, bool(v))
		case OptionReconnectTime:
			e = c.socket.SetOption(mangos.OptionReconnectTime, time.Duration(v))
		case OptionMaxReconnectTime:
			e = c.socket.SetOption(mangos.OptionMaxReconnectTime, time.Duration(v))
		case OptionTLSConfig:
			e = c.socket.SetOption(mangos.OptionTLSConfig, (*tls.Config)(v))
		case OptionRetryTime:
			e = c.socket.SetOption(mangos.OptionRetryTime, time.Duration(v))
		default:
			e = errors.New("unknown option")
		}
		if e != nil {
			return e
		}
	}
	return nil
}

func (c *rpcClient) Dial(url string, opts ...interface{}) error {
	d, e := c.socket.NewDialer(url, nil)
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

func (c *rpcClient) Listen(url string, opts ...interface{}) error {
	l, e := c.socket.NewListener(url, nil)
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
	return l.Listen()
}

func (c *rpcClient) Call(ctx context.Context, service, method string, result interface{}, params ...interface{}) error {
	b, err := rpc.EncodeRequest(&ipcsvc.Request{
		Service:    service,
		Method:     method,
		Parameters: params,
	})
	if err != nil {
		return err
	}

	mc, err := c.socket.OpenContext()
	if err != nil {
		return err
	}
	var doneError error
	defer func() {
		_ = mc.Close()
	}()

	doneQ := make(chan struct{})

	go func() {
		defer close(doneQ)

		if e := mc.Send(b); e != nil {
			doneError = e
			return
		}

		m, e := mc.Recv()
		if e != nil {
			doneError = e
			return
		}

		dec, e := rpc.DecodeResponse(m)
		if e != nil {
			doneError = e
			return
		}

		// If the caller has passed nil, that means either the function
		// returns no results, or the caller does not care.  Either
		// way we discard them.
		if result == nil {
			return
		}
		doneError = dec.Decode(result)
	}()

	select {
	case <-ctx.Done():
		_ = mc.Close() // This should cause the other side to wake.
		err = ctx.Err()
	case <-doneQ:
		err = doneError
	}
	<-doneQ

	return err
}
