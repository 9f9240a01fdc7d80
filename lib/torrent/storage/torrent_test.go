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
	"io"
	"os"
	"testing"

	"swarmcore/core"

	"github.com/stretchr/testify/require"
)

func writeAllBlocks(t *LocalTorrent, desc *core.Descriptor, content []byte, pi int) error {
	off := desc.Offset(pi)
	var lastErr error
	for bi := 0; bi < desc.NumBlocks(pi); bi++ {
		blockOff := uint32(bi) * core.BlockSize
		blockLen := desc.BlockLen(pi, bi)
		data := content[int64(off)+int64(blockOff) : int64(off)+int64(blockOff)+int64(blockLen)]
		lastErr = t.WriteBlock(data, pi, blockOff)
	}
	return lastErr
}

func TestWriteBlockCompletesPieceOnFullContent(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(3, core.BlockSize*2+100)
	defer cleanup()

	require.False(torrent.HasPiece(0))
	require.NoError(writeAllBlocks(torrent, desc, content, 0))
	require.True(torrent.HasPiece(0))
	require.False(torrent.Complete())
}

func TestWriteBlockInvalidHashResetsPiece(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(2, core.BlockSize)
	defer cleanup()

	corrupted := make([]byte, len(content))
	copy(corrupted, content)
	corrupted[0] ^= 0xFF

	err := writeAllBlocks(torrent, desc, corrupted, 0)
	require.ErrorIs(err, ErrInvalidPieceHash)
	require.False(torrent.HasPiece(0))

	// Piece must be re-writable after a failed hash check.
	require.NoError(writeAllBlocks(torrent, desc, content, 0))
	require.True(torrent.HasPiece(0))
}

func TestWriteBlockRejectsWritesToCompletePiece(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(1, core.BlockSize)
	defer cleanup()

	require.NoError(writeAllBlocks(torrent, desc, content, 0))
	err := torrent.WriteBlock(content[:10], 0, 0)
	require.ErrorIs(err, ErrPieceComplete)
}

func TestGetPieceReaderReturnsCommittedContent(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(2, core.BlockSize)
	defer cleanup()

	require.NoError(writeAllBlocks(torrent, desc, content, 1))

	r, err := torrent.GetPieceReader(1)
	require.NoError(err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(err)

	off := desc.Offset(1)
	want := content[off : off+int64(desc.PieceLen(1))]
	require.Equal(want, got)
}

func TestGetPieceReaderErrorsOnIncompletePiece(t *testing.T) {
	require := require.New(t)

	torrent, _, _, cleanup := TorrentFixture(2, core.BlockSize)
	defer cleanup()

	_, err := torrent.GetPieceReader(0)
	require.Error(err)
}

func TestMissingBlocksShrinksAsBlocksArrive(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(2, core.BlockSize*2)
	defer cleanup()

	require.Len(torrent.MissingBlocks(0), desc.NumBlocks(0))

	off := desc.Offset(0)
	require.NoError(torrent.WriteBlock(content[off:off+core.BlockSize], 0, 0))
	require.Len(torrent.MissingBlocks(0), desc.NumBlocks(0)-1)

	require.NoError(writeAllBlocks(torrent, desc, content, 0))
	require.Nil(torrent.MissingBlocks(0))
}

func TestTorrentCompleteOnceAllPiecesWritten(t *testing.T) {
	require := require.New(t)

	torrent, desc, content, cleanup := TorrentFixture(3, core.BlockSize)
	defer cleanup()

	for pi := 0; pi < desc.NumPieces(); pi++ {
		require.NoError(writeAllBlocks(torrent, desc, content, pi))
	}
	require.True(torrent.Complete())
	require.Empty(torrent.MissingPieces())

	b, err := os.ReadFile(desc.OutputPath)
	require.NoError(err)
	require.Equal(content, b)
}
