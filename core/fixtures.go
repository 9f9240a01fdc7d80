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

import (
	"crypto/sha1"

	"swarmcore/utils/randutil"
)

// PeerIDFixture returns a randomly generated PeerID.
func PeerIDFixture() PeerID {
	p, err := RandomPeerID()
	if err != nil {
		panic(err)
	}
	return p
}

// InfoHashFixture returns a randomly generated InfoHash.
func InfoHashFixture() InfoHash {
	return NewInfoHashFromBytes(randutil.Text(32))
}

// PeerInfoFixture returns a randomly generated PeerInfo.
func PeerInfoFixture() *PeerInfo {
	return NewPeerInfo(PeerIDFixture(), randutil.IP(), randutil.Port(), false, false)
}

// OriginPeerInfoFixture returns a randomly generated PeerInfo for an origin.
func OriginPeerInfoFixture() *PeerInfo {
	return NewPeerInfo(PeerIDFixture(), randutil.IP(), randutil.Port(), true, true)
}

// PeerContextFixture returns a randomly generated PeerContext.
func PeerContextFixture() PeerContext {
	pctx, err := NewPeerContext(
		RandomPeerIDFactory,
		"zone1",
		"test01-zone1",
		randutil.IP(),
		randutil.Port(),
		false)
	if err != nil {
		panic(err)
	}
	return pctx
}

// OriginContextFixture returns a randomly generated origin PeerContext.
func OriginContextFixture() PeerContext {
	octx := PeerContextFixture()
	octx.Origin = true
	return octx
}

// DescriptorFixture returns a randomly generated Descriptor with numPieces
// pieces of pieceLength bytes each (the final piece may be shorter).
func DescriptorFixture(numPieces int, pieceLength uint32) *Descriptor {
	if numPieces <= 0 {
		numPieces = 4
	}
	if pieceLength == 0 {
		pieceLength = BlockSize
	}
	totalLength := uint64(pieceLength)*uint64(numPieces-1) + uint64(pieceLength/2+1)
	hashes := make([][20]byte, numPieces)
	for i := range hashes {
		h := sha1.Sum(randutil.Text(uint64(pieceLength)))
		hashes[i] = h
	}
	d, err := NewDescriptor(InfoHashFixture(), pieceLength, totalLength, hashes, "/tmp/swarmcore-fixture")
	if err != nil {
		panic(err)
	}
	return d
}
