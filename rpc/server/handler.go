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

	"go.nanomsg.org/mangos/v3"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/dispatch"
	"go.nanomsg.org/ipcsvc/internal/logging"
	"go.nanomsg.org/ipcsvc/rpc"
	"go.nanomsg.org/ipcsvc/service"
)

// Handler serves exactly one request per session.
type Handler struct {
	registry   *service.Registry
	dispatcher *dispatch.Dispatcher
	logger     logging.Logger
}

// NewHandler creates a handler.  A nil logger is tolerated.
func NewHandler(registry *service.Registry, logger logging.Logger) *Handler {
	logger = logging.OrNull(logger)
	return &Handler{
		registry:   registry,
		dispatcher: dispatch.New(dispatch.WithLogger(logger)),
		logger:     logger,
	}
}

// Handle reads one request from the session, dispatches it in a fresh
// scope and writes the response.  Nothing escapes: transport failures
// and panics are logged, and no response is attempted on a session
// that has failed.  It reports whether the session failed because the
// socket was closed.
func (h *Handler) Handle(ctx context.Context, sess rpc.Session) (closed bool) {
	r := rpc.NewReader(sess)
	w := rpc.NewWriter(sess)
	defer func() {
		_ = w.Close()
		_ = r.Close()
	}()
	defer func() {
		if p := recover(); p != nil {
			h.logger.Errorf("[%s] session aborted: %v", worker(ctx), p)
		}
	}()

	h.logger.Debugf("[%s] client connected, reading request...", worker(ctx))
	req, err := r.ReadRequest()
	if err != nil {
		if rpc.IsTransport(err) {
			if rpc.TransportCause(err) == mangos.ErrClosed {
				h.logger.Debugf("[%s] socket closed", worker(ctx))
				return true
			}
			h.logger.Errorf("[%s] %v", worker(ctx), err)
			return false
		}
		// The request was received but could not be decoded; the
		// session is still good, so tell the client why.
		h.logger.Warnf("[%s] bad request: %v", worker(ctx), err)
		h.write(ctx, w, ipcsvc.Fail(err))
		return false
	}

	h.logger.Debugf("[%s] request %s.%s received, invoking corresponding method...",
		worker(ctx), req.Service, req.Method)

	scope := h.registry.NewScope()
	res := func() *Response {
		defer func() {
			if err := scope.Dispose(); err != nil {
				h.logger.Warnf("[%s] disposing scope of %s.%s: %v", worker(ctx), req.Service, req.Method, err)
			}
		}()
		return h.dispatcher.Dispatch(ctx, req, scope)
	}()

	if !res.Success {
		h.logger.Infof("[%s] %s.%s failed: %s", worker(ctx), req.Service, req.Method, res.FailureMessage())
	}
	h.logger.Debugf("[%s] sending response...", worker(ctx))
	if h.write(ctx, w, res) {
		h.logger.Debugf("[%s] done.", worker(ctx))
	}
	return false
}

func (h *Handler) write(ctx context.Context, w *rpc.Writer, res *Response) bool {
	if err := w.Write(res); err != nil {
		h.logger.Errorf("[%s] %v", worker(ctx), err)
		return false
	}
	return true
}

type workerKey struct{}

// withWorker tags the context with the name of the serving worker, so
// that log lines from one session can be told apart.
func withWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey{}, name)
}

func worker(ctx context.Context) string {
	if s, ok := ctx.Value(workerKey{}).(string); ok {
		return s
	}
	return "-"
}
