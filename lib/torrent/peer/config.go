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

// Package peer implements the per-connection protocol state machine: one
// actor per connected remote, running the handshake then a concurrent
// read/command loop until the connection is terminated.
package peer

import "time"

// Config controls peer actor timing and limits.
type Config struct {
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxPendingRequests int           `yaml:"max_pending_requests"`
	MaxReadChunk       int           `yaml:"max_read_chunk"`
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
}

func (c Config) applyDefaults() Config {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxPendingRequests == 0 {
		c.MaxPendingRequests = 5
	}
	if c.MaxReadChunk == 0 {
		c.MaxReadChunk = 64 * 1024
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = time.Second
	}
	return c
}
