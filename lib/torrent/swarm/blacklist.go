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
package swarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// Blacklist tracks addresses of peers which supplied data failing a piece
// hash check. Blacklisted addresses are excluded from future dials until
// their entry expires.
type Blacklist struct {
	ttl time.Duration
	clk clock.Clock

	mu      sync.Mutex
	entries map[string]time.Time
}

// NewBlacklist constructs a Blacklist whose entries expire after ttl.
func NewBlacklist(ttl time.Duration, clk clock.Clock) *Blacklist {
	return &Blacklist{
		ttl:     ttl,
		clk:     clk,
		entries: make(map[string]time.Time),
	}
}

func addrKey(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// Add blacklists host:port until the configured ttl elapses.
func (b *Blacklist) Add(host string, port int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[addrKey(host, port)] = b.clk.Now().Add(b.ttl)
}

// Blacklisted reports whether host:port is currently blacklisted.
func (b *Blacklist) Blacklisted(host string, port int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiresAt, ok := b.entries[addrKey(host, port)]
	if !ok {
		return false
	}
	if b.clk.Now().After(expiresAt) {
		delete(b.entries, addrKey(host, port))
		return false
	}
	return true
}
