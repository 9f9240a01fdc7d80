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

// Package storage holds the piece and block level data of a single torrent
// on disk. A Torrent buffers incoming blocks in memory until a full piece is
// assembled, verifies the piece against its expected SHA-1 hash, and only
// then commits it with a single write into the pre-allocated output file.
package storage

import (
	"errors"
	"io"

	"swarmcore/core"

	"github.com/willf/bitset"
)

// ErrPieceComplete occurs when a write is attempted against a piece which
// has already been verified and committed to disk.
var ErrPieceComplete = errors.New("piece is already complete")

// ErrInvalidPieceHash occurs when a fully assembled piece fails its SHA-1
// check against the torrent descriptor.
var ErrInvalidPieceHash = errors.New("piece failed hash verification")

// ErrBlockOutOfRange occurs when a block offset/length falls outside of the
// bounds of its containing piece.
var ErrBlockOutOfRange = errors.New("block out of range for piece")

// BlockSpec identifies a block's position within its piece by its in-piece
// begin offset and length.
type BlockSpec struct {
	Begin  uint32
	Length uint32
}

// PieceReader defines operations for lazy, seekable piece reading off of the
// committed output file.
type PieceReader interface {
	io.ReadCloser
	Length() int
}

// Torrent represents the on-disk state of a single torrent: which pieces
// are complete, and the means to read and write them.
type Torrent interface {
	InfoHash() core.InfoHash
	NumPieces() int
	Length() int64
	PieceLength(piece int) int64
	MaxPieceLength() int64
	Complete() bool
	BytesDownloaded() int64
	Bitfield() *bitset.BitSet
	String() string

	HasPiece(piece int) bool
	MissingPieces() []int

	// MissingBlocks returns the begin/length of every block of piece pi not
	// yet buffered. It returns nil once the piece is complete.
	MissingBlocks(pi int) []BlockSpec

	// WriteBlock buffers a block of piece pi's content at the given
	// in-piece offset. Once every block of the piece has been written, the
	// piece is hashed, verified, and committed to the output file. Returns
	// ErrInvalidPieceHash if the assembled piece does not match the
	// descriptor, in which case the piece's buffer is reset and all blocks
	// must be re-fetched.
	WriteBlock(data []byte, pi int, offset uint32) error

	GetPieceReader(piece int) (PieceReader, error)
}
