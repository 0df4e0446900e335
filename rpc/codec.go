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

package rpc

import (
	"bytes"

	"github.com/vmihailenco/msgpack"

	"go.nanomsg.org/ipcsvc"
)

// Messages are expressed over the wire as msgpack arrays, encoded and
// decoded piecewise so that parameters and results stay polymorphic.
//
//	request:  [version, service, method, [params...]]
//	response: [version, success, value, code, message]
//
// On success code is 0 and message is nil.  On failure value is nil.

const (
	requestLen  = 4
	responseLen = 5
)

// EncodeRequest encodes a request for the wire.
func EncodeRequest(req *ipcsvc.Request) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)

	if err := enc.EncodeArrayLen(requestLen); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint8(ipcsvc.Version); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(req.Service); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(req.Method); err != nil {
		return nil, err
	}
	if err := enc.EncodeArrayLen(len(req.Parameters)); err != nil {
		return nil, err
	}
	for _, p := range req.Parameters {
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func parseErr(what string, e error) *ipcsvc.Error {
	return &ipcsvc.Error{
		Kind:    ipcsvc.KindParse,
		Message: "parse error: " + what + ": " + e.Error(),
		Cause:   e,
	}
}

// DecodeRequest decodes a request.  Failures are *ipcsvc.Error values
// of kind Parse, InvalidRequest or BadVersion.
func DecodeRequest(b []byte) (*ipcsvc.Request, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))

	l, e := dec.DecodeArrayLen()
	if e != nil {
		return nil, parseErr("message not an array", e)
	}
	if l != requestLen {
		return nil, ipcsvc.NewError(ipcsvc.KindInvalidRequest, "invalid request: message array length invalid")
	}

	ver, e := dec.DecodeUint8()
	if e != nil {
		return nil, parseErr("unable to parse version", e)
	}
	if ver != ipcsvc.Version {
		return nil, &ipcsvc.Error{Kind: ipcsvc.KindBadVersion, Value: ver}
	}

	req := &ipcsvc.Request{}
	if req.Service, e = dec.DecodeString(); e != nil {
		return nil, parseErr("unable to parse service", e)
	}
	if req.Method, e = dec.DecodeString(); e != nil {
		return nil, parseErr("unable to parse method", e)
	}
	if req.Service == "" || req.Method == "" {
		return nil, ipcsvc.NewError(ipcsvc.KindInvalidRequest, "invalid request: service and method are required")
	}

	n, e := dec.DecodeArrayLen()
	if e != nil {
		return nil, parseErr("unable to parse parameters", e)
	}
	if n > 0 {
		req.Parameters = make([]interface{}, n)
		for i := 0; i < n; i++ {
			if req.Parameters[i], e = dec.DecodeInterface(); e != nil {
				return nil, parseErr("unable to parse parameter", e)
			}
		}
	}
	return req, nil
}

// EncodeResponse encodes a response for the wire.  If the value cannot
// be encoded, a failed response is encoded in its place.
func EncodeResponse(res *ipcsvc.Response) ([]byte, error) {
	b, err := encodeResponse(res)
	if err != nil && res.Success {
		return encodeResponse(ipcsvc.Fail(&ipcsvc.Error{
			Kind:    ipcsvc.KindInternal,
			Message: "internal error: failed to marshal result",
			Cause:   err,
		}))
	}
	return b, err
}

func encodeResponse(res *ipcsvc.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)

	if err := enc.EncodeArrayLen(responseLen); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint8(ipcsvc.Version); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(res.Success); err != nil {
		return nil, err
	}
	if res.Success {
		if err := enc.Encode(res.Value); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(0); err != nil {
			return nil, err
		}
		if err := enc.EncodeNil(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	e := res.Error
	if e == nil {
		e = ipcsvc.NewError(ipcsvc.KindUnspecified, "unspecified error")
	}
	if err := enc.EncodeNil(); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(int64(e.Kind)); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(e.Error()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResponseDecoder holds a decoder positioned at the value of a
// successful response, so the caller can decode it into any type.
type ResponseDecoder struct {
	dec *msgpack.Decoder
}

// Decode decodes the result value into v.
func (d *ResponseDecoder) Decode(v interface{}) error {
	return d.dec.Decode(v)
}

// Value decodes the result value loosely.
func (d *ResponseDecoder) Value() (interface{}, error) {
	return d.dec.DecodeInterface()
}

// DecodeResponse decodes the response header.  For a failed response
// it returns the carried *ipcsvc.Error.  For a successful one it
// returns a decoder for the value.
func DecodeResponse(b []byte) (*ResponseDecoder, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))

	if l, e := dec.DecodeArrayLen(); e != nil {
		return nil, parseErr("failed decoding header", e)
	} else if l != responseLen {
		return nil, ipcsvc.NewError(ipcsvc.KindParse, "parse error: header array length wrong")
	}

	if v, e := dec.DecodeUint8(); e != nil {
		return nil, parseErr("failed decoding version", e)
	} else if v != ipcsvc.Version {
		return nil, &ipcsvc.Error{Kind: ipcsvc.KindBadVersion, Value: v}
	}

	pass, e := dec.DecodeBool()
	if e != nil {
		return nil, parseErr("failed decoding success", e)
	}
	if pass {
		return &ResponseDecoder{dec: dec}, nil
	}

	if e = dec.DecodeNil(); e != nil {
		return nil, parseErr("failed decoding value", e)
	}
	code, e := dec.DecodeInt()
	if e != nil {
		return nil, parseErr("failed decoding error code", e)
	}
	msg, e := dec.DecodeString()
	if e != nil {
		return nil, parseErr("failed decoding error message", e)
	}
	return nil, &ipcsvc.Error{Kind: ipcsvc.Kind(code), Message: msg}
}
