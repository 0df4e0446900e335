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

import "github.com/vmihailenco/msgpack"

// Void is the result of a method that has no return.  It encodes as
// the msgpack nil value, and likewise decodes from nil.  This is
// needed because Go doesn't have a void type.
type Void struct{}

func (Void) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeNil()
}

func (*Void) DecodeMsgpack(dec *msgpack.Decoder) error {
	return dec.DecodeNil()
}

// Deferred is implemented by results that are not immediately
// available, such as futures.  They are not supported: a method
// returning one fails with KindUnsupportedResult.
type Deferred interface {
	Done() <-chan struct{}
}
