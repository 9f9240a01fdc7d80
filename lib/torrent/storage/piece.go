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
	"sync"

	"swarmcore/core"
)

type pieceStatus int

const (
	_empty pieceStatus = iota
	_complete
)

// piece tracks the completion status and in-progress block buffer of a
// single piece. A piece is dirty (buf != nil, status == _empty) while
// blocks are still arriving, and transitions to _complete once its content
// has been hashed, verified, and flushed to disk. received tracks which
// blocks have already landed, indexed by block index, so that a duplicate
// block delivered by a second peer during endgame mode does not get double
// counted.
type piece struct {
	mu        sync.Mutex
	status    pieceStatus
	length    uint32
	numBlocks int
	buf       []byte // nil unless a write is in progress for this piece.
	received  []bool
	numLeft   int
}

func newPiece(length uint32) *piece {
	numBlocks := int(length / core.BlockSize)
	if length%core.BlockSize != 0 {
		numBlocks++
	}
	return &piece{status: _empty, length: length, numBlocks: numBlocks, numLeft: numBlocks}
}

func (p *piece) complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status == _complete
}

func (p *piece) markComplete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = _complete
	p.buf = nil
}

// writeBlock writes data into the piece's buffer at offset, allocating the
// buffer on first use. Returns the full piece content and true once every
// byte of the piece has been written at least once.
func (p *piece) writeBlock(data []byte, offset uint32) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == _complete {
		return nil, false, ErrPieceComplete
	}
	if uint64(offset)+uint64(len(data)) > uint64(p.length) {
		return nil, false, ErrBlockOutOfRange
	}
	if p.buf == nil {
		p.buf = make([]byte, p.length)
		p.received = make([]bool, p.numBlocks)
	}
	copy(p.buf[offset:], data)

	bi := int(offset / core.BlockSize)
	if !p.received[bi] {
		p.received[bi] = true
		p.numLeft--
	}
	if p.numLeft > 0 {
		return nil, false, nil
	}
	return p.buf, true, nil
}

// reset discards any buffered blocks for the piece, e.g. after a failed
// hash verification, so the piece can be re-requested from scratch.
func (p *piece) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = nil
	p.received = nil
	p.numLeft = p.numBlocks
}

// blockBounds returns the begin offset and length of block bi within this
// piece. The final block of the piece may be shorter than core.BlockSize.
func (p *piece) blockBounds(bi int) (begin, length uint32) {
	begin = uint32(bi) * core.BlockSize
	length = core.BlockSize
	if begin+length > p.length {
		length = p.length - begin
	}
	return begin, length
}

// missingBlocks returns the begin/length of every block not yet received.
func (p *piece) missingBlocks() []BlockSpec {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == _complete {
		return nil
	}
	var specs []BlockSpec
	for bi := 0; bi < p.numBlocks; bi++ {
		if p.received != nil && p.received[bi] {
			continue
		}
		begin, length := p.blockBounds(bi)
		specs = append(specs, BlockSpec{Begin: begin, Length: length})
	}
	return specs
}
