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

package service

import (
	"go.nanomsg.org/ipcsvc"
)

// Resolve locates the implementation and method a request targets.
// The contract is looked up first, then the implementation is obtained
// from the scope (which owns it), and finally the method.  The
// returned error is always an *ipcsvc.Error naming the lookup that
// failed.
func Resolve(s *Scope, service, method string) (interface{}, *Method, *ipcsvc.Error) {
	c, ok := s.registry.Contract(service)
	if !ok {
		return nil, nil, ipcsvc.ContractNotFound(service)
	}

	impl, err := s.Get(service)
	if err != nil {
		return nil, nil, ipcsvc.ImplementationNotFound(service, err)
	}

	m, ok := c.Method(method)
	if !ok {
		return nil, nil, ipcsvc.MethodNotFound(service, method)
	}
	return impl, m, nil
}
