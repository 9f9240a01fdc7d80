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

// Package seeder implements the choking algorithm: on a fixed tick, it ranks
// interested peers by recent download rate, keeps the fastest unchoked, and
// periodically rotates in one random optimistic unchoke so new or otherwise
// slow peers still get a chance to prove themselves.
package seeder

import (
	"time"

	"github.com/uber-go/tally"
)

// Config controls choking behavior.
type Config struct {
	ChokingWait             time.Duration `yaml:"choking_wait"`
	NumUnchokeSlots         int           `yaml:"num_unchoke_slots"`
	OptimisticRotationTicks int           `yaml:"optimistic_rotation_ticks"`

	// Stats receives choking counters. Defaults to a no-op scope.
	Stats tally.Scope `yaml:"-"`
}

func (c Config) applyDefaults() Config {
	if c.ChokingWait == 0 {
		c.ChokingWait = 10 * time.Second
	}
	if c.NumUnchokeSlots == 0 {
		c.NumUnchokeSlots = 4
	}
	if c.OptimisticRotationTicks == 0 {
		c.OptimisticRotationTicks = 3
	}
	if c.Stats == nil {
		c.Stats = tally.NoopScope
	}
	return c
}
