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
package tracker

import (
	"time"

	"swarmcore/utils/backoff"
)

// Config controls HTTP tracker announce behavior.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`

	// DefaultInterval is used when a tracker response omits (or sets to
	// zero) its own interval.
	DefaultInterval time.Duration `yaml:"default_interval"`

	UserAgent string `yaml:"user_agent"`

	// Retry bounds how long a single tracker URL is retried before the
	// client falls through to the next one in the announce list.
	Retry backoff.Config `yaml:"retry"`
}

func (c Config) applyDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.DefaultInterval == 0 {
		c.DefaultInterval = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "swarmcore/1.0"
	}
	if c.Retry.Min == 0 {
		c.Retry.Min = time.Second
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = 10 * time.Second
	}
	if c.Retry.RetryTimeout == 0 {
		c.Retry.RetryTimeout = 30 * time.Second
	}
	return c
}
