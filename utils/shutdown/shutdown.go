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

// Package shutdown provides a process-wide cleanup handler that runs
// registered cleanup functions in reverse registration order.
package shutdown

import (
	"context"
	"sync"

	"swarmcore/utils/log"
)

// Handler coordinates graceful shutdown of a process or swarm session.
type Handler struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	ctx      context.Context
	cleanups []func() error
	once     sync.Once
}

// New returns a new Handler whose Context is derived from parent and
// cancelled on Shutdown.
func New(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	return &Handler{ctx: ctx, cancel: cancel}
}

// Context returns a context which is cancelled when Shutdown is called.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers f to run during Shutdown. Cleanup functions run in
// LIFO order.
func (h *Handler) AddCleanup(f func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, f)
}

// Shutdown cancels the handler's context and runs all registered cleanup
// functions in LIFO order. Subsequent calls are no-ops.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		cleanups := h.cleanups
		h.mu.Unlock()

		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				log.Errorf("shutdown cleanup error: %s", err)
			}
		}
	})
}
