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

// Package downloader implements the request scheduler: rarest-first piece
// assignment, per-peer request pipelining, endgame duplication, and hash
// failure handling.
package downloader

import (
	"time"

	"github.com/uber-go/tally"
)

// Config controls scheduling thresholds.
type Config struct {
	MaxPeerRequests  int           `yaml:"max_peer_requests"`
	MaxPeerWait      time.Duration `yaml:"max_peer_wait"`
	PeerWaitStep     time.Duration `yaml:"peer_wait_step"`
	NoRequestTimeout time.Duration `yaml:"no_request_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	EndgamePieces    int           `yaml:"endgame_pieces"`

	// Stats receives scheduling counters. Defaults to a no-op scope.
	Stats tally.Scope `yaml:"-"`
}

func (c Config) applyDefaults() Config {
	if c.MaxPeerRequests == 0 {
		c.MaxPeerRequests = 5
	}
	if c.MaxPeerWait == 0 {
		c.MaxPeerWait = 100 * time.Second
	}
	if c.PeerWaitStep == 0 {
		c.PeerWaitStep = 3 * time.Second
	}
	if c.NoRequestTimeout == 0 {
		c.NoRequestTimeout = 100 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.EndgamePieces == 0 {
		c.EndgamePieces = 3
	}
	if c.Stats == nil {
		c.Stats = tally.NoopScope
	}
	return c
}
