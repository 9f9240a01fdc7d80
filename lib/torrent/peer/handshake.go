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
package peer

import (
	"io"
	"net"
	"time"

	"swarmcore/core"
	"swarmcore/lib/torrent/wire"
)

// Handshake performs the BitTorrent handshake over conn: sends the local
// handshake, then reads exactly 68 bytes within timeout and validates them
// against desc.InfoHash. It returns the remote's peer id on success. The
// caller is responsible for sending the follow-up Bitfield message once the
// connection enters the running phase.
func Handshake(conn net.Conn, desc *core.Descriptor, self core.PeerID, timeout time.Duration) (core.PeerID, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return core.PeerID{}, err
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(wire.Handshake(desc.InfoHash, self)); err != nil {
		return core.PeerID{}, err
	}

	buf := make([]byte, 68)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return core.PeerID{}, err
	}

	return wire.ParseHandshake(buf, desc.InfoHash)
}
