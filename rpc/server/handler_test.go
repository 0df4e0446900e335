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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/internal/logging"
	"go.nanomsg.org/ipcsvc/rpc"
	"go.nanomsg.org/ipcsvc/service"
)

type session struct {
	in      []byte
	out     [][]byte
	recvErr error
	sendErr error
}

func (s *session) Recv() ([]byte, error) {
	if s.recvErr != nil {
		return nil, s.recvErr
	}
	return s.in, nil
}

func (s *session) Send(b []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.out = append(s.out, b)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fixture, *observer.ObservedLogs) {
	f := &fixture{}
	reg := service.NewRegistry()
	require.NoError(t, reg.Register(calcContract(), func(*service.Scope) (interface{}, error) {
		f.created++
		return &Calc{closed: &f.closed}, nil
	}))
	core, logs := observer.New(zap.DebugLevel)
	return NewHandler(reg, logging.FromZap(zap.New(core))), f, logs
}

func TestHandleRequest(t *testing.T) {
	h, f, logs := newTestHandler(t)
	b, err := rpc.EncodeRequest(&ipcsvc.Request{Service: "ICalc", Method: "Add", Parameters: []interface{}{2, 3}})
	require.NoError(t, err)

	s := &session{in: b}
	closed := h.Handle(withWorker(context.Background(), "w/1"), s)
	assert.False(t, closed)
	require.Len(t, s.out, 1)

	d, err := rpc.DecodeResponse(s.out[0])
	require.NoError(t, err)
	var n int
	require.NoError(t, d.Decode(&n))
	assert.Equal(t, 5, n)

	assert.Equal(t, int32(1), f.created)
	assert.Equal(t, int32(1), f.closed)
	assert.Equal(t, 1, logs.FilterMessage("[w/1] done.").Len())
}

func TestHandleFailureIsLogged(t *testing.T) {
	h, _, logs := newTestHandler(t)
	b, err := rpc.EncodeRequest(&ipcsvc.Request{Service: "ICalc", Method: "Nope"})
	require.NoError(t, err)

	s := &session{in: b}
	h.Handle(context.Background(), s)
	require.Len(t, s.out, 1)
	_, err = rpc.DecodeResponse(s.out[0])
	assert.True(t, errors.Is(err, ipcsvc.ErrMethodNotFound))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.InfoLevel).Len())
}

func TestHandleTransportFailure(t *testing.T) {
	h, f, logs := newTestHandler(t)

	s := &session{recvErr: errors.New("broken pipe")}
	assert.False(t, h.Handle(context.Background(), s))
	assert.Empty(t, s.out, "no response on a failed session")
	assert.Equal(t, int32(0), f.created)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())

	s = &session{recvErr: mangos.ErrClosed}
	assert.True(t, h.Handle(context.Background(), s))
	assert.Empty(t, s.out)
}

func TestHandleSendFailure(t *testing.T) {
	h, f, logs := newTestHandler(t)
	b, err := rpc.EncodeRequest(&ipcsvc.Request{Service: "ICalc", Method: "Add", Parameters: []interface{}{2, 3}})
	require.NoError(t, err)

	s := &session{in: b, sendErr: errors.New("peer gone")}
	assert.False(t, h.Handle(context.Background(), s))
	assert.Equal(t, int32(1), f.closed, "scope disposed even when the reply is lost")
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestHandleDecodeFailure(t *testing.T) {
	h, _, _ := newTestHandler(t)

	s := &session{in: []byte{0xc1}}
	assert.False(t, h.Handle(context.Background(), s))
	require.Len(t, s.out, 1)
	_, err := rpc.DecodeResponse(s.out[0])
	assert.True(t, errors.Is(err, ipcsvc.ErrParse), "%v", err)
}

func TestServerNameAfterLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := NewServer(nil)
	defer srv.Close()

	require.NoError(t, srv.SetOption(OptionLogger{Logger: logging.FromZap(zap.New(core))}, OptionName("calc")))
	require.NoError(t, srv.Listen("inproc:///rpc_named_logger"))

	entries := logs.FilterMessage("listening on inproc:///rpc_named_logger").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "calc", entries[0].LoggerName)

	require.NoError(t, srv.SetOption(OptionName("calc2")))
	require.NoError(t, srv.Listen("inproc:///rpc_renamed_logger"))
	entries = logs.FilterMessage("listening on inproc:///rpc_renamed_logger").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "calc2", entries[0].LoggerName)
}
