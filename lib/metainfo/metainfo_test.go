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
package metainfo

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/jackpal/bencode-go"
	"github.com/stretchr/testify/require"
)

func buildTorrentBytes(t *testing.T, pieces string) []byte {
	info := map[string]interface{}{
		"piece length": int64(16384),
		"pieces":       pieces,
		"name":         "movie.mkv",
		"length":       int64(32768),
	}
	root := map[string]interface{}{
		"announce": "http://tracker.example.com:6969/announce",
		"info":     info,
	}
	var buf bytes.Buffer
	require.NoError(t, bencode.Marshal(&buf, root))
	return buf.Bytes()
}

func twoPieceHashes() string {
	h1 := sha1.Sum([]byte("piece-one"))
	h2 := sha1.Sum([]byte("piece-two"))
	return string(h1[:]) + string(h2[:])
}

func TestParseSingleFileTorrent(t *testing.T) {
	raw := buildTorrentBytes(t, twoPieceHashes())

	mi, err := Parse(bytes.NewReader(raw), "/tmp/movie.mkv")
	require.NoError(t, err)
	require.Equal(t, "movie.mkv", mi.Name)
	require.Equal(t, []string{"http://tracker.example.com:6969/announce"}, mi.AnnounceURLs)
	require.Equal(t, uint32(16384), mi.Descriptor.PieceLength)
	require.Equal(t, uint64(32768), mi.Descriptor.TotalLength)
	require.Equal(t, 2, mi.Descriptor.NumPieces())
}

func TestParseIsDeterministicRegardlessOfKeyOrder(t *testing.T) {
	pieces := twoPieceHashes()

	a, err := Parse(bytes.NewReader(buildTorrentBytes(t, pieces)), "/tmp/out")
	require.NoError(t, err)

	info := map[string]interface{}{
		"length":       int64(32768),
		"name":         "movie.mkv",
		"pieces":       pieces,
		"piece length": int64(16384),
	}
	root := map[string]interface{}{
		"info":     info,
		"announce": "http://tracker.example.com:6969/announce",
	}
	var buf bytes.Buffer
	require.NoError(t, bencode.Marshal(&buf, root))

	b, err := Parse(bytes.NewReader(buf.Bytes()), "/tmp/out")
	require.NoError(t, err)

	require.Equal(t, a.Descriptor.InfoHash, b.Descriptor.InfoHash)
}

func TestParseRejectsMultiFile(t *testing.T) {
	info := map[string]interface{}{
		"piece length": int64(16384),
		"pieces":       twoPieceHashes(),
		"name":         "movie-dir",
	}
	root := map[string]interface{}{
		"announce": "http://tracker.example.com:6969/announce",
		"info":     info,
	}
	var buf bytes.Buffer
	require.NoError(t, bencode.Marshal(&buf, root))

	_, err := Parse(bytes.NewReader(buf.Bytes()), "/tmp/out")
	require.Error(t, err)
}

func TestParseRejectsMalformedPieces(t *testing.T) {
	info := map[string]interface{}{
		"piece length": int64(16384),
		"pieces":       "short",
		"name":         "movie.mkv",
		"length":       int64(32768),
	}
	root := map[string]interface{}{
		"announce": "http://tracker.example.com:6969/announce",
		"info":     info,
	}
	var buf bytes.Buffer
	require.NoError(t, bencode.Marshal(&buf, root))

	_, err := Parse(bytes.NewReader(buf.Bytes()), "/tmp/out")
	require.Error(t, err)
}

func TestAnnounceURLsDedupesAcrossList(t *testing.T) {
	raw := rawFile{
		Announce: "http://a.example.com/announce",
		AnnounceList: [][]string{
			{"http://a.example.com/announce", "http://b.example.com/announce"},
			{"http://c.example.com/announce"},
		},
	}
	urls := announceURLs(raw)
	require.Equal(t, []string{
		"http://a.example.com/announce",
		"http://b.example.com/announce",
		"http://c.example.com/announce",
	}, urls)
}
