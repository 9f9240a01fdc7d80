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
package core

import "time"

// AnnounceResponse is returned by the announcer collaborator on every
// (re)announce: a list of peers currently known for the torrent, plus the
// interval to wait before announcing again.
type AnnounceResponse struct {
	Peers    []*PeerInfo   `json:"peers"`
	Interval time.Duration `json:"interval"`
}

// Announcer discovers peers for a torrent. Implementations are supplied by
// the caller; this module only depends on the interface.
type Announcer interface {
	Announce(infoHash InfoHash, self PeerID, complete bool) (*AnnounceResponse, error)
}

// SortedPeerIDs converts a list of peers into their peer ids in ascending order.
func SortedPeerIDs(peers []*PeerInfo) []string {
	sorted := SortedByPeerID(peers)
	ids := make([]string, len(sorted))
	for i, p := range sorted {
		ids[i] = p.PeerID.String()
	}
	return ids
}
