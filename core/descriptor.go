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
	"errors"
	"fmt"
)

// BlockSize is the fixed size, in bytes, of a block within a piece. Only the
// final block of a piece (or of the whole torrent, for the final piece) may
// be shorter.
const BlockSize = 16 * 1024

// Descriptor is an already-validated description of a single-file torrent.
// It is the unit of work a Downloader or Seeder operates against, and is
// assumed to have been constructed by a collaborator outside this module
// (e.g. parsed from a .torrent file or handed down by an indexing service).
type Descriptor struct {
	// InfoHash uniquely identifies the torrent (and the swarm formed around
	// it).
	InfoHash InfoHash

	// PieceLength is the length, in bytes, of every piece except the final
	// one, which may be shorter.
	PieceLength uint32

	// TotalLength is the length, in bytes, of the target file.
	TotalLength uint64

	// PieceHashes holds the SHA-1 hash of each piece's content, in order.
	// len(PieceHashes) == NumPieces().
	PieceHashes [][20]byte

	// OutputPath is the path on disk the reconstructed file is written to.
	OutputPath string
}

// NewDescriptor validates and constructs a Descriptor.
func NewDescriptor(
	infoHash InfoHash,
	pieceLength uint32,
	totalLength uint64,
	pieceHashes [][20]byte,
	outputPath string) (*Descriptor, error) {

	if pieceLength == 0 {
		return nil, errors.New("piece length must be positive")
	}
	if totalLength == 0 {
		return nil, errors.New("total length must be positive")
	}
	if outputPath == "" {
		return nil, errors.New("output path must be set")
	}
	expected := numPieces(totalLength, pieceLength)
	if len(pieceHashes) != expected {
		return nil, fmt.Errorf(
			"invalid piece hash count: expected %d, got %d", expected, len(pieceHashes))
	}
	return &Descriptor{
		InfoHash:    infoHash,
		PieceLength: pieceLength,
		TotalLength: totalLength,
		PieceHashes: pieceHashes,
		OutputPath:  outputPath,
	}, nil
}

func numPieces(totalLength uint64, pieceLength uint32) int {
	n := totalLength / uint64(pieceLength)
	if totalLength%uint64(pieceLength) != 0 {
		n++
	}
	return int(n)
}

// NumPieces returns the number of pieces in the torrent.
func (d *Descriptor) NumPieces() int {
	return len(d.PieceHashes)
}

// PieceLen returns the length, in bytes, of piece pi. The final piece is
// truncated to whatever remains of TotalLength.
func (d *Descriptor) PieceLen(pi int) uint32 {
	if pi == d.NumPieces()-1 {
		rem := d.TotalLength - uint64(d.PieceLength)*uint64(pi)
		return uint32(rem)
	}
	return d.PieceLength
}

// NumBlocks returns the number of blocks piece pi is divided into.
func (d *Descriptor) NumBlocks(pi int) int {
	n := d.PieceLen(pi) / BlockSize
	if d.PieceLen(pi)%BlockSize != 0 {
		n++
	}
	return int(n)
}

// BlockLen returns the length, in bytes, of block bi within piece pi.
func (d *Descriptor) BlockLen(pi, bi int) uint32 {
	pieceLen := d.PieceLen(pi)
	if bi == d.NumBlocks(pi)-1 {
		rem := pieceLen - BlockSize*uint32(bi)
		return rem
	}
	return BlockSize
}

// Offset returns the absolute byte offset of piece pi within the target
// file.
func (d *Descriptor) Offset(pi int) int64 {
	return int64(d.PieceLength) * int64(pi)
}

// PieceHash returns the expected SHA-1 hash of piece pi.
func (d *Descriptor) PieceHash(pi int) [20]byte {
	return d.PieceHashes[pi]
}
