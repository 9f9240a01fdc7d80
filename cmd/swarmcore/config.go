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
package main

import (
	"swarmcore/core"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/swarm"
	"swarmcore/lib/tracker"
	"swarmcore/metrics"
	"swarmcore/utils/log"
)

// Config is the root configuration for the swarmcore agent binary.
type Config struct {
	ZapLogging log.Config `yaml:"zap_logging"`

	PeerIDFactory core.PeerIDFactory `yaml:"peer_id_factory"`

	Metrics metrics.Config `yaml:"metrics"`

	NetworkEvent networkevent.Config `yaml:"network_event"`

	Tracker tracker.Config `yaml:"tracker"`

	Swarm swarm.Config `yaml:"swarm"`
}
