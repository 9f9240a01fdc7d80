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

// Package swarm wires together the session, downloader, seeder and peer
// actor packages into a single running torrent: it owns the listening
// socket, drives the announce loop, and dials and accepts peer connections.
package swarm

import (
	"time"

	"swarmcore/lib/torrent/downloader"
	"swarmcore/lib/torrent/peer"
	"swarmcore/lib/torrent/seeder"

	"github.com/uber-go/tally"
)

// Config controls swarm-level behavior.
type Config struct {
	// AnnounceInterval is used for the very first announce, before a
	// tracker-supplied interval is known.
	AnnounceInterval time.Duration `yaml:"announce_interval"`

	DialTimeout time.Duration `yaml:"dial_timeout"`

	BlacklistDuration time.Duration `yaml:"blacklist_duration"`

	// MaxOpenConnections caps the number of simultaneously connected peers.
	MaxOpenConnections int `yaml:"max_open_connections"`

	Peer       peer.Config       `yaml:"peer"`
	Downloader downloader.Config `yaml:"downloader"`
	Seeder     seeder.Config     `yaml:"seeder"`

	// Stats receives connection counters and gauges. Defaults to a no-op
	// scope; also propagated to Downloader and Seeder if they have none
	// set explicitly.
	Stats tally.Scope `yaml:"-"`
}

func (c Config) applyDefaults() Config {
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = 5 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 15 * time.Second
	}
	if c.BlacklistDuration == 0 {
		c.BlacklistDuration = 5 * time.Minute
	}
	if c.MaxOpenConnections == 0 {
		c.MaxOpenConnections = 50
	}
	if c.Stats == nil {
		c.Stats = tally.NoopScope
	}
	if c.Downloader.Stats == nil {
		c.Downloader.Stats = c.Stats
	}
	if c.Seeder.Stats == nil {
		c.Seeder.Stats = c.Stats
	}
	return c
}
