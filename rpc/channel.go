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

// Package rpc holds the wire format and the message channel used by
// both the server and the client.
package rpc

import (
	"github.com/pkg/errors"

	"go.nanomsg.org/ipcsvc"
)

// Session is one connected exchange with a peer.  Messages are already
// framed by the transport.  A mangos.Context satisfies this.
type Session interface {
	Recv() ([]byte, error)
	Send([]byte) error
}

var errChannelClosed = errors.New("channel closed")

// transportErr wraps a failure of the session itself.
func transportErr(e error, op string) *ipcsvc.Error {
	return &ipcsvc.Error{
		Kind:  ipcsvc.KindTransport,
		Cause: errors.Wrap(e, op),
	}
}

// IsTransport reports whether e is a failure of the session, after
// which nothing more can be sent on it.
func IsTransport(e error) bool {
	return errors.Is(e, ipcsvc.ErrTransport)
}

// TransportCause returns the underlying transport error, with any
// wrapping removed.
func TransportCause(e error) error {
	var z *ipcsvc.Error
	if errors.As(e, &z) && z.Kind == ipcsvc.KindTransport && z.Cause != nil {
		return errors.Cause(z.Cause)
	}
	return errors.Cause(e)
}

// Reader reads requests from a session.  Closing the reader does not
// close the session.
type Reader struct {
	s      Session
	closed bool
}

// NewReader wraps a session for reading.
func NewReader(s Session) *Reader {
	return &Reader{s: s}
}

// ReadRequest receives and decodes exactly one request.  A transport
// failure is reported as KindTransport; anything else is a decode
// failure and leaves the session usable.
func (r *Reader) ReadRequest() (*ipcsvc.Request, error) {
	if r.closed {
		return nil, transportErr(errChannelClosed, "reading request")
	}
	b, e := r.s.Recv()
	if e != nil {
		return nil, transportErr(e, "receiving request")
	}
	return DecodeRequest(b)
}

// Close releases the reader.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// Writer writes responses to a session.  Closing the writer does not
// close the session.
type Writer struct {
	s      Session
	closed bool
}

// NewWriter wraps a session for writing.
func NewWriter(s Session) *Writer {
	return &Writer{s: s}
}

// Write encodes and sends exactly one response.
func (w *Writer) Write(res *ipcsvc.Response) error {
	if w.closed {
		return transportErr(errChannelClosed, "writing response")
	}
	b, e := EncodeResponse(res)
	if e != nil {
		return errors.Wrap(e, "encoding response")
	}
	if e = w.s.Send(b); e != nil {
		return transportErr(e, "sending response")
	}
	return nil
}

// Close releases the writer.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}
