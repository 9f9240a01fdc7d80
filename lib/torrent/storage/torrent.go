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
	"fmt"
	"io"
	"os"

	"swarmcore/core"
	"swarmcore/lib/fileio"
	"swarmcore/utils/diskspaceutil"
	"swarmcore/utils/log"
	"swarmcore/utils/memsize"

	"github.com/willf/bitset"
	"go.uber.org/atomic"
)

// _diskUtilWarnPct is the filesystem utilization percentage above which
// NewLocalTorrent logs a warning before allocating the output file.
const _diskUtilWarnPct = 95

// outputFile is the file handle shape LocalTorrent needs: block reads and
// writes at arbitrary offsets, plus Close. *os.File satisfies it directly.
type outputFile interface {
	fileio.ReadWriter
	io.Closer
}

// LocalTorrent implements Torrent on top of a single pre-allocated output
// file on local disk. It allows concurrent writes to distinct pieces and
// concurrent reads of complete pieces; behavior is undefined if multiple
// LocalTorrent instances are backed by the same output file.
type LocalTorrent struct {
	desc        *core.Descriptor
	f           outputFile
	pieces      []*piece
	numComplete *atomic.Int32
}

// NewLocalTorrent creates a LocalTorrent backed by desc.OutputPath,
// preallocating the file to its full length if it does not already exist.
func NewLocalTorrent(desc *core.Descriptor) (*LocalTorrent, error) {
	if util, err := diskspaceutil.FileSystemUtil(); err == nil && util > _diskUtilWarnPct {
		log.Warnf("storage: filesystem at %.1f%% utilization, allocating %s for %s",
			util, memsize.Format(desc.TotalLength), desc.OutputPath)
	}

	f, err := os.OpenFile(desc.OutputPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %s", err)
	}
	if err := f.Truncate(int64(desc.TotalLength)); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate output file: %s", err)
	}
	pieces := make([]*piece, desc.NumPieces())
	for i := range pieces {
		pieces[i] = newPiece(desc.PieceLen(i))
	}
	return &LocalTorrent{
		desc:        desc,
		f:           f,
		pieces:      pieces,
		numComplete: atomic.NewInt32(0),
	}, nil
}

// InfoHash returns the torrent's info hash.
func (t *LocalTorrent) InfoHash() core.InfoHash { return t.desc.InfoHash }

// NumPieces returns the number of pieces in the torrent.
func (t *LocalTorrent) NumPieces() int { return len(t.pieces) }

// Length returns the length of the target file.
func (t *LocalTorrent) Length() int64 { return int64(t.desc.TotalLength) }

// PieceLength returns the length of piece pi.
func (t *LocalTorrent) PieceLength(pi int) int64 { return int64(t.desc.PieceLen(pi)) }

// MaxPieceLength returns the longest piece length of the torrent.
func (t *LocalTorrent) MaxPieceLength() int64 { return int64(t.desc.PieceLength) }

// Complete reports whether every piece has been verified and written.
func (t *LocalTorrent) Complete() bool {
	return int(t.numComplete.Load()) == len(t.pieces)
}

// BytesDownloaded returns an estimate of the number of bytes downloaded.
func (t *LocalTorrent) BytesDownloaded() int64 {
	n := int64(t.numComplete.Load()) * int64(t.desc.PieceLength)
	if n > t.Length() {
		return t.Length()
	}
	return n
}

// Bitfield returns a bitset where bit i is set iff piece i is complete.
func (t *LocalTorrent) Bitfield() *bitset.BitSet {
	bf := bitset.New(uint(len(t.pieces)))
	for i, p := range t.pieces {
		if p.complete() {
			bf.Set(uint(i))
		}
	}
	return bf
}

func (t *LocalTorrent) String() string {
	return fmt.Sprintf(
		"torrent(info_hash=%s, pieces=%d/%d)",
		t.desc.InfoHash.Hex(), t.numComplete.Load(), len(t.pieces))
}

// HasPiece returns whether piece pi is complete.
func (t *LocalTorrent) HasPiece(pi int) bool {
	if pi < 0 || pi >= len(t.pieces) {
		return false
	}
	return t.pieces[pi].complete()
}

// MissingPieces returns the indices of all incomplete pieces.
func (t *LocalTorrent) MissingPieces() []int {
	var missing []int
	for i, p := range t.pieces {
		if !p.complete() {
			missing = append(missing, i)
		}
	}
	return missing
}

// MissingBlocks returns the begin/length of every block of piece pi not yet
// buffered, or nil if the piece is already complete.
func (t *LocalTorrent) MissingBlocks(pi int) []BlockSpec {
	if pi < 0 || pi >= len(t.pieces) {
		return nil
	}
	return t.pieces[pi].missingBlocks()
}

// WriteBlock buffers a block of piece pi at the given offset. Once the
// piece is fully buffered, it is hashed against the descriptor's expected
// hash and, on success, written to the output file at its absolute offset
// and marked complete. On a hash mismatch, the piece's buffer is reset and
// ErrInvalidPieceHash is returned so the caller can blacklist whichever
// peer(s) contributed and re-request the piece's blocks.
func (t *LocalTorrent) WriteBlock(data []byte, pi int, offset uint32) error {
	if pi < 0 || pi >= len(t.pieces) {
		return fmt.Errorf("invalid piece index %d", pi)
	}
	p := t.pieces[pi]

	full, complete, err := p.writeBlock(data, offset)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	sum := sha1.Sum(full)
	if sum != t.desc.PieceHash(pi) {
		p.reset()
		return ErrInvalidPieceHash
	}

	if _, err := t.f.WriteAt(full, t.desc.Offset(pi)); err != nil {
		p.reset()
		return fmt.Errorf("write piece %d: %s", pi, err)
	}
	p.markComplete()
	t.numComplete.Inc()
	return nil
}

// GetPieceReader returns a reader for piece pi's committed content.
func (t *LocalTorrent) GetPieceReader(pi int) (PieceReader, error) {
	if pi < 0 || pi >= len(t.pieces) {
		return nil, fmt.Errorf("invalid piece index %d", pi)
	}
	if !t.pieces[pi].complete() {
		return nil, errPieceNotComplete
	}
	return newSectionReader(t.f, t.desc.Offset(pi), t.desc.PieceLen(pi)), nil
}

// Close releases the underlying output file descriptor.
func (t *LocalTorrent) Close() error {
	return t.f.Close()
}
