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
package closers

import (
	"errors"
	"testing"
)

type fakeCloser struct {
	err    error
	closed bool
}

func (c *fakeCloser) Close() error {
	c.closed = true
	return c.err
}

func TestCloseNilCloser(t *testing.T) {
	// Should not panic.
	Close(nil)
}

func TestCloseSuccess(t *testing.T) {
	c := &fakeCloser{}
	Close(c)
	if !c.closed {
		t.Fatal("expected Close to be called")
	}
}

func TestCloseLogsError(t *testing.T) {
	c := &fakeCloser{err: errors.New("close error")}
	Close(c)
	if !c.closed {
		t.Fatal("expected Close to be called")
	}
}
