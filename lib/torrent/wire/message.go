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

// Package wire implements the BitTorrent peer wire protocol: the handshake
// and the length-prefixed typed message stream defined by BEP 3. It is pure
// and does no I/O of its own; the peer package reads and writes the byte
// representations produced here.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ID identifies a message's wire type.
type ID byte

// Message ids, per BEP 3.
const (
	IDChoke         ID = 0
	IDUnchoke       ID = 1
	IDInterested    ID = 2
	IDNotInterested ID = 3
	IDHave          ID = 4
	IDBitfield      ID = 5
	IDRequest       ID = 6
	IDPiece         ID = 7
	IDCancel        ID = 8
	IDPort          ID = 9
)

// MaxRequestLength is the largest block length a Request may carry. The
// peer package ignores requests for more than this.
const MaxRequestLength = 1 << 17

// ErrIncomplete indicates the buffer does not yet contain a full message.
// Callers should keep accumulating bytes and try again; it is not a protocol
// violation.
var ErrIncomplete = errors.New("wire: incomplete message")

// ErrMalformed indicates the buffer contains bytes that can never form a
// valid message. Callers must drop the connection.
var ErrMalformed = errors.New("wire: malformed message")

// Message is a tagged union of every peer protocol message. Exactly one of
// the typed fields is meaningful, selected by ID. Every parsed message is a
// freshly allocated value; none are recycled or shared across calls.
type Message struct {
	ID ID

	Piece  uint32 // Have, Request, Piece, Cancel
	Begin  uint32 // Request, Piece, Cancel
	Length uint32 // Request, Cancel

	Bitfield []byte // Bitfield, MSB-first packed
	Block    []byte // Piece payload

	Port uint16 // Port
}

// KeepAlive is the sentinel returned for a zero-length message frame, which
// carries no id of its own.
var KeepAlive = Message{ID: 255}

// IsKeepAlive reports whether m is a keep-alive frame.
func (m Message) IsKeepAlive() bool { return m.ID == 255 }

func (id ID) String() string {
	switch id {
	case IDChoke:
		return "choke"
	case IDUnchoke:
		return "unchoke"
	case IDInterested:
		return "interested"
	case IDNotInterested:
		return "not_interested"
	case IDHave:
		return "have"
	case IDBitfield:
		return "bitfield"
	case IDRequest:
		return "request"
	case IDPiece:
		return "piece"
	case IDCancel:
		return "cancel"
	case IDPort:
		return "port"
	default:
		return fmt.Sprintf("unknown(%d)", byte(id))
	}
}

// Choke, Unchoke, Interested and NotInterested construct their respective
// zero-payload messages.
func Choke() Message         { return Message{ID: IDChoke} }
func Unchoke() Message       { return Message{ID: IDUnchoke} }
func Interested() Message    { return Message{ID: IDInterested} }
func NotInterested() Message { return Message{ID: IDNotInterested} }

// Have constructs a Have(piece) message.
func Have(piece uint32) Message {
	return Message{ID: IDHave, Piece: piece}
}

// Bitfield constructs a Bitfield message from pre-packed bytes.
func Bitfield(b []byte) Message {
	return Message{ID: IDBitfield, Bitfield: b}
}

// Request constructs a Request message.
func Request(piece, begin, length uint32) Message {
	return Message{ID: IDRequest, Piece: piece, Begin: begin, Length: length}
}

// Piece constructs a Piece reply carrying block.
func Piece(piece, begin uint32, block []byte) Message {
	return Message{ID: IDPiece, Piece: piece, Begin: begin, Block: block}
}

// Cancel constructs a Cancel message.
func Cancel(piece, begin, length uint32) Message {
	return Message{ID: IDCancel, Piece: piece, Begin: begin, Length: length}
}

// PortMsg constructs a DHT Port message. The core does not implement DHT;
// the message is parsed only so unsolicited Port frames do not terminate a
// connection.
func PortMsg(port uint16) Message {
	return Message{ID: IDPort, Port: port}
}

// Serialize encodes m into its wire representation, including the 4-byte
// length prefix.
func Serialize(m Message) []byte {
	if m.IsKeepAlive() {
		return []byte{0, 0, 0, 0}
	}

	var body []byte
	switch m.ID {
	case IDChoke, IDUnchoke, IDInterested, IDNotInterested:
		body = nil
	case IDHave:
		body = make([]byte, 4)
		binary.BigEndian.PutUint32(body, m.Piece)
	case IDBitfield:
		body = m.Bitfield
	case IDRequest, IDCancel:
		body = make([]byte, 12)
		binary.BigEndian.PutUint32(body[0:4], m.Piece)
		binary.BigEndian.PutUint32(body[4:8], m.Begin)
		binary.BigEndian.PutUint32(body[8:12], m.Length)
	case IDPiece:
		body = make([]byte, 8+len(m.Block))
		binary.BigEndian.PutUint32(body[0:4], m.Piece)
		binary.BigEndian.PutUint32(body[4:8], m.Begin)
		copy(body[8:], m.Block)
	case IDPort:
		body = make([]byte, 2)
		binary.BigEndian.PutUint16(body, m.Port)
	default:
		panic(fmt.Sprintf("wire: cannot serialize unknown id %d", m.ID))
	}

	buf := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(body)))
	buf[4] = byte(m.ID)
	copy(buf[5:], body)
	return buf
}

// ParseFirst extracts the first complete message from buf, if any, and
// returns it along with the unconsumed remainder. It returns ErrIncomplete
// if buf does not yet hold a full frame, or ErrMalformed if buf can never
// form a valid message (unknown id or wrong body length). A Bitfield body is
// not checked here; UnpackBitfield rejects non-zero padding bits.
func ParseFirst(buf []byte) (Message, []byte, error) {
	if len(buf) < 4 {
		return Message{}, buf, ErrIncomplete
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	if length == 0 {
		return KeepAlive, buf[4:], nil
	}
	if uint64(len(buf)) < 4+uint64(length) {
		return Message{}, buf, ErrIncomplete
	}

	id := ID(buf[4])
	body := buf[5 : 4+length]
	rest := buf[4+length:]

	m, err := parseBody(id, body)
	if err != nil {
		return Message{}, buf, err
	}
	return m, rest, nil
}

func parseBody(id ID, body []byte) (Message, error) {
	switch id {
	case IDChoke, IDUnchoke, IDInterested, IDNotInterested:
		if len(body) != 0 {
			return Message{}, ErrMalformed
		}
		return Message{ID: id}, nil
	case IDHave:
		if len(body) != 4 {
			return Message{}, ErrMalformed
		}
		return Have(binary.BigEndian.Uint32(body)), nil
	case IDBitfield:
		b := make([]byte, len(body))
		copy(b, body)
		return Bitfield(b), nil
	case IDRequest:
		if len(body) != 12 {
			return Message{}, ErrMalformed
		}
		return Request(
			binary.BigEndian.Uint32(body[0:4]),
			binary.BigEndian.Uint32(body[4:8]),
			binary.BigEndian.Uint32(body[8:12]),
		), nil
	case IDCancel:
		if len(body) != 12 {
			return Message{}, ErrMalformed
		}
		return Cancel(
			binary.BigEndian.Uint32(body[0:4]),
			binary.BigEndian.Uint32(body[4:8]),
			binary.BigEndian.Uint32(body[8:12]),
		), nil
	case IDPiece:
		if len(body) < 8 {
			return Message{}, ErrMalformed
		}
		block := make([]byte, len(body)-8)
		copy(block, body[8:])
		return Piece(
			binary.BigEndian.Uint32(body[0:4]),
			binary.BigEndian.Uint32(body[4:8]),
			block,
		), nil
	case IDPort:
		if len(body) != 2 {
			return Message{}, ErrMalformed
		}
		return PortMsg(binary.BigEndian.Uint16(body)), nil
	default:
		return Message{}, ErrMalformed
	}
}

// PackBitfield packs a set of piece indices into an MSB-first bit array with
// numPieces bits, zero-padded to a byte boundary.
func PackBitfield(numPieces int, has func(i int) bool) []byte {
	b := make([]byte, (numPieces+7)/8)
	for i := 0; i < numPieces; i++ {
		if has(i) {
			b[i/8] |= 1 << uint(7-i%8)
		}
	}
	return b
}

// UnpackBitfield decodes an MSB-first packed bitfield of numPieces bits. It
// returns ErrMalformed if the byte length is wrong or any spare trailing bit
// is set.
func UnpackBitfield(b []byte, numPieces int) ([]bool, error) {
	wantLen := (numPieces + 7) / 8
	if len(b) != wantLen {
		return nil, ErrMalformed
	}
	bits := make([]bool, numPieces)
	for i := 0; i < numPieces; i++ {
		bits[i] = b[i/8]&(1<<uint(7-i%8)) != 0
	}
	for i := numPieces; i < wantLen*8; i++ {
		if b[i/8]&(1<<uint(7-i%8)) != 0 {
			return nil, ErrMalformed
		}
	}
	return bits, nil
}
