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

// Package metainfo parses single-file .torrent metainfo dictionaries into
// the torrent descriptor the swarm engine consumes. It sits outside the
// swarm engine itself: the engine only ever sees an already-validated
// core.Descriptor.
package metainfo

import (
	"bytes"
	"fmt"
	"io"

	"swarmcore/core"

	"github.com/jackpal/bencode-go"
)

const _pieceHashLen = 20

// rawInfo mirrors the "info" dictionary of a single-file .torrent.
type rawInfo struct {
	PieceLength int64  `bencode:"piece length"`
	Pieces      string `bencode:"pieces"`
	Name        string `bencode:"name"`
	Length      int64  `bencode:"length"`
	Private     int    `bencode:"private,omitempty"`
}

// rawFile mirrors the root dictionary of a .torrent file.
type rawFile struct {
	Announce     string     `bencode:"announce"`
	AnnounceList [][]string `bencode:"announce-list,omitempty"`
	Info         rawInfo    `bencode:"info"`
	CreatedBy    string     `bencode:"created by,omitempty"`
	Comment      string     `bencode:"comment,omitempty"`
}

// Metainfo is a parsed single-file .torrent: the torrent descriptor fields
// plus the announce URLs the tracker client needs, which are not part of
// core.Descriptor.
type Metainfo struct {
	Descriptor   *core.Descriptor
	AnnounceURLs []string
	Name         string
	CreatedBy    string
	Comment      string
}

// Parse reads a bencoded .torrent file and derives a core.Descriptor from
// it, using outputPath as the destination for the downloaded file. Only
// single-file torrents are supported; a "files" list in the info
// dictionary is rejected.
func Parse(r io.Reader, outputPath string) (*Metainfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("metainfo: read: %s", err)
	}

	var raw rawFile
	if err := bencode.Unmarshal(bytes.NewReader(body), &raw); err != nil {
		return nil, fmt.Errorf("metainfo: decode: %s", err)
	}

	if raw.Info.Length <= 0 {
		return nil, fmt.Errorf("metainfo: multi-file torrents are not supported")
	}
	if raw.Info.PieceLength <= 0 {
		return nil, fmt.Errorf("metainfo: invalid piece length %d", raw.Info.PieceLength)
	}
	if len(raw.Info.Pieces)%_pieceHashLen != 0 {
		return nil, fmt.Errorf("metainfo: pieces field is not a multiple of %d bytes", _pieceHashLen)
	}

	infoHash, err := hashInfoDict(body)
	if err != nil {
		return nil, err
	}

	n := len(raw.Info.Pieces) / _pieceHashLen
	hashes := make([][20]byte, n)
	for i := 0; i < n; i++ {
		copy(hashes[i][:], raw.Info.Pieces[i*_pieceHashLen:(i+1)*_pieceHashLen])
	}

	desc, err := core.NewDescriptor(
		infoHash, uint32(raw.Info.PieceLength), uint64(raw.Info.Length), hashes, outputPath)
	if err != nil {
		return nil, fmt.Errorf("metainfo: build descriptor: %s", err)
	}

	return &Metainfo{
		Descriptor:   desc,
		AnnounceURLs: announceURLs(raw),
		Name:         raw.Info.Name,
		CreatedBy:    raw.CreatedBy,
		Comment:      raw.Comment,
	}, nil
}

func announceURLs(raw rawFile) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	add(raw.Announce)
	for _, tier := range raw.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return urls
}

// hashInfoDict re-decodes the root dictionary generically, pulls out the
// "info" value, and re-encodes just that value to compute its info hash.
// bencode-go's map encoder sorts keys before encoding, which matches the
// canonical form BEP 3 requires, so the re-encoded bytes hash identically
// to the original "info" dictionary's bytes regardless of the source
// file's own key order.
func hashInfoDict(body []byte) (core.InfoHash, error) {
	var generic map[string]interface{}
	if err := bencode.Unmarshal(bytes.NewReader(body), &generic); err != nil {
		return core.InfoHash{}, fmt.Errorf("metainfo: decode generic: %s", err)
	}
	info, ok := generic["info"]
	if !ok {
		return core.InfoHash{}, fmt.Errorf("metainfo: missing info dictionary")
	}
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, info); err != nil {
		return core.InfoHash{}, fmt.Errorf("metainfo: re-encode info dictionary: %s", err)
	}
	return core.NewInfoHashFromBytes(buf.Bytes()), nil
}
