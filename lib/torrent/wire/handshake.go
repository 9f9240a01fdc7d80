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
package wire

import (
	"bytes"

	"swarmcore/core"
)

const (
	protocolName   = "BitTorrent protocol"
	handshakeLen   = 49 + len(protocolName)
	reservedLen    = 8
	protocolNameLn = byte(len(protocolName))
)

// Handshake serializes the 68-byte BEP 3 handshake for infoHash and self.
func Handshake(infoHash core.InfoHash, self core.PeerID) []byte {
	buf := make([]byte, 0, handshakeLen)
	buf = append(buf, protocolNameLn)
	buf = append(buf, protocolName...)
	buf = append(buf, make([]byte, reservedLen)...)
	buf = append(buf, infoHash.Bytes()...)
	buf = append(buf, self.Bytes()...)
	return buf
}

// ParseHandshake validates a received 68-byte handshake against the locally
// expected infoHash and returns the remote's peer id. Any structural
// mismatch -- wrong length, wrong protocol name length or string, or a
// mismatched info hash -- yields core.ErrMalformedHandshake.
func ParseHandshake(buf []byte, infoHash core.InfoHash) (core.PeerID, error) {
	var zero core.PeerID
	if len(buf) != handshakeLen {
		return zero, core.ErrMalformedHandshake
	}
	if buf[0] != protocolNameLn {
		return zero, core.ErrMalformedHandshake
	}
	if !bytes.Equal(buf[1:1+len(protocolName)], []byte(protocolName)) {
		return zero, core.ErrMalformedHandshake
	}
	offset := 1 + len(protocolName) + reservedLen
	if !bytes.Equal(buf[offset:offset+20], infoHash.Bytes()) {
		return zero, core.ErrMalformedHandshake
	}
	var remote core.PeerID
	copy(remote[:], buf[offset+20:offset+40])
	return remote, nil
}
