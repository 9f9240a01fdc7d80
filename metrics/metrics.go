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

// Package metrics configures the tally.Scope used to report swarm
// counters and gauges (pieces completed, bytes transferred, connected
// peers). A disabled scope is used by default; a stdout scope is
// available for local debugging.
package metrics

import (
	"fmt"
	"io"

	"github.com/uber-go/tally"
)

// Config selects and configures the reporter backend.
type Config struct {
	Backend string `yaml:"backend"`
}

// New constructs the tally.Scope selected by config.Backend ("disabled" or
// "stdout"; defaults to "disabled"), tagged with the given peer id.
func New(config Config, peerID string) (tally.Scope, io.Closer, error) {
	switch config.Backend {
	case "stdout":
		return newStdoutScope(peerID)
	case "", "disabled":
		return newDisabledScope(peerID)
	default:
		return nil, nil, fmt.Errorf("metrics: unknown backend %q", config.Backend)
	}
}
