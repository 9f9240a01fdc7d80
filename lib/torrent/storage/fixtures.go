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
package storage

import (
	"crypto/sha1"
	"os"

	"swarmcore/core"
)

// TorrentFixture creates a LocalTorrent backed by a temp file and returns
// the torrent, the descriptor it was built from, the original content, and
// a cleanup function.
func TorrentFixture(numPieces int, pieceLength uint32) (*LocalTorrent, *core.Descriptor, []byte, func()) {
	f, err := os.CreateTemp("", "swarmcore-torrent-fixture")
	if err != nil {
		panic(err)
	}
	f.Close()

	totalLength := uint64(pieceLength)*uint64(numPieces-1) + uint64(pieceLength/2+1)
	content := make([]byte, totalLength)
	for i := range content {
		content[i] = byte(i)
	}

	hashes := make([][20]byte, numPieces)
	for i := range hashes {
		start := uint64(i) * uint64(pieceLength)
		end := start + uint64(pieceLength)
		if end > totalLength {
			end = totalLength
		}
		hashes[i] = sha1.Sum(content[start:end])
	}

	desc, err := core.NewDescriptor(
		core.InfoHashFixture(), pieceLength, totalLength, hashes, f.Name())
	if err != nil {
		panic(err)
	}

	torrent, err := NewLocalTorrent(desc)
	if err != nil {
		panic(err)
	}

	cleanup := func() {
		torrent.Close()
		os.Remove(f.Name())
	}
	return torrent, desc, content, cleanup
}
