// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package closers provides a helper for closing resources whose Close
// error is not actionable but still worth logging, at call sites (e.g.
// defer) that have no error return of their own.
package closers

import (
	"io"

	"swarmcore/utils/log"
)

// Close closes c, logging any error it returns. It is a no-op on a nil
// Closer.
func Close(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Errorf("closers: close: %s", err)
	}
}
