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
package peer

import (
	"net"
	"testing"
	"time"

	"swarmcore/core"
	"swarmcore/lib/torrent/blockrequest"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/session"
	"swarmcore/lib/torrent/storage"
	"swarmcore/lib/torrent/wire"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

type testPeerFixture struct {
	peer    *Peer
	client  net.Conn
	torrent *storage.LocalTorrent
	desc    *core.Descriptor
	content []byte
	queue   chan *blockrequest.Request
	cleanup func()
}

func newTestPeerFixture() *testPeerFixture {
	torrent, desc, content, cleanupTorrent := storage.TorrentFixture(2, core.BlockSize)
	self := core.PeerIDFixture()
	remote := core.PeerIDFixture()

	sess := session.New(torrent, desc.NumPieces(), clock.New())
	completed := make(chan *blockrequest.Request, 16)

	serverConn, clientConn := net.Pipe()

	p := New(
		serverConn, remote, self, "127.0.0.1", 6881,
		desc, torrent, sess, networkevent.NewTestProducer(), completed,
		Config{}, clock.New(),
	)

	return &testPeerFixture{
		peer:    p,
		client:  clientConn,
		torrent: torrent,
		desc:    desc,
		content: content,
		queue:   completed,
		cleanup: func() {
			clientConn.Close()
			cleanupTorrent()
		},
	}
}

// writeAllBlocks commits piece pi in full from f.content, mirroring the
// storage package's own test helper.
func (f *testPeerFixture) writeAllBlocks(pi int) error {
	off := f.desc.Offset(pi)
	var lastErr error
	for bi := 0; bi < f.desc.NumBlocks(pi); bi++ {
		blockOff := uint32(bi) * core.BlockSize
		blockLen := f.desc.BlockLen(pi, bi)
		data := f.content[int64(off)+int64(blockOff) : int64(off)+int64(blockOff)+int64(blockLen)]
		lastErr = f.torrent.WriteBlock(data, pi, blockOff)
	}
	return lastErr
}

func TestHandshakeRoundTrip(t *testing.T) {
	require := require.New(t)

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	desc := core.DescriptorFixture(1, core.BlockSize)
	self := core.PeerIDFixture()
	other := core.PeerIDFixture()

	errc := make(chan error, 1)
	go func() {
		_, err := remoteHandshake(serverConn, desc, other)
		errc <- err
	}()

	remote, err := Handshake(clientConn, desc, self, time.Second)
	require.NoError(err)
	require.Equal(other, remote)
	require.NoError(<-errc)
}

// remoteHandshake mirrors the passive side of a handshake exchange for test
// purposes: it reads the initiator's handshake and answers with its own.
func remoteHandshake(conn net.Conn, desc *core.Descriptor, self core.PeerID) (core.PeerID, error) {
	buf := make([]byte, 68)
	if _, err := readFullTest(conn, buf); err != nil {
		return core.PeerID{}, err
	}
	remote, err := wire.ParseHandshake(buf, desc.InfoHash)
	if err != nil {
		return core.PeerID{}, err
	}
	if _, err := conn.Write(wire.Handshake(desc.InfoHash, self)); err != nil {
		return core.PeerID{}, err
	}
	return remote, nil
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestRunSendsInitialBitfield(t *testing.T) {
	require := require.New(t)

	f := newTestPeerFixture()
	defer f.cleanup()

	go f.peer.Run()
	defer f.peer.Terminate()

	buf := make([]byte, 64)
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := f.client.Read(buf)
	require.NoError(err)

	msg, _, err := wire.ParseFirst(buf[:n])
	require.NoError(err)
	require.Equal(wire.IDBitfield, msg.ID)
}

func TestLeadingKeepAliveDoesNotConsumeFirstMessageSlot(t *testing.T) {
	require := require.New(t)

	f := newTestPeerFixture()
	defer f.cleanup()

	go f.peer.Run()
	defer f.peer.Terminate()

	// Drain the peer's own initial Bitfield before driving it as the remote.
	buf := make([]byte, 64)
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := f.client.Read(buf)
	require.NoError(err)

	_, err = f.client.Write(wire.Serialize(wire.KeepAlive))
	require.NoError(err)

	bits := wire.PackBitfield(f.desc.NumPieces(), func(int) bool { return false })
	_, err = f.client.Write(wire.Serialize(wire.Bitfield(bits)))
	require.NoError(err)

	select {
	case <-f.peer.Done():
		t.Fatalf("peer terminated unexpectedly: %s", f.peer.Err())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnchokeThenRequestReceivesPiece(t *testing.T) {
	require := require.New(t)

	f := newTestPeerFixture()
	defer f.cleanup()

	go f.peer.Run()
	defer f.peer.Terminate()

	// Drain the initial bitfield. The buffer holds a whole Piece frame.
	buf := make([]byte, 2*core.BlockSize)
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := f.client.Read(buf)
	require.NoError(err)

	require.NoError(f.writeAllBlocks(0))

	_, err = f.client.Write(wire.Serialize(wire.Interested()))
	require.NoError(err)

	f.peer.SetAmChoking(false)

	// Drain the Unchoke the peer sends in response.
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = f.client.Read(buf)
	require.NoError(err)

	_, err = f.client.Write(wire.Serialize(wire.Request(0, 0, core.BlockSize)))
	require.NoError(err)

	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := f.client.Read(buf)
	require.NoError(err)

	msg, _, err := wire.ParseFirst(buf[:n])
	require.NoError(err)
	require.Equal(wire.IDPiece, msg.ID)
	require.Equal(uint32(0), msg.Piece)
	require.Len(msg.Block, core.BlockSize)
}

func TestRequestIgnoredWhileChoking(t *testing.T) {
	require := require.New(t)

	f := newTestPeerFixture()
	defer f.cleanup()

	go f.peer.Run()
	defer f.peer.Terminate()

	buf := make([]byte, 1024)
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := f.client.Read(buf)
	require.NoError(err)

	require.NoError(f.writeAllBlocks(0))

	// amChoking defaults to true; the request must be silently dropped.
	_, err = f.client.Write(wire.Serialize(wire.Request(0, 0, core.BlockSize)))
	require.NoError(err)

	f.client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = f.client.Read(buf)
	require.Error(err)
}

func TestExpiredRequestIsRequeued(t *testing.T) {
	require := require.New(t)

	f := newTestPeerFixture()
	defer f.cleanup()

	mockClock := clock.NewMock()
	f.peer.clk = mockClock
	f.peer.cfg.RequestTimeout = 10 * time.Second
	f.peer.cfg.RefreshInterval = 10 * time.Millisecond

	go f.peer.Run()
	defer f.peer.Terminate()

	buf := make([]byte, 1024)
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := f.client.Read(buf)
	require.NoError(err)

	req := blockrequest.New(0, 0, core.BlockSize, mockClock.Now(), f.peer.cfg.RequestTimeout)
	require.NoError(f.peer.SendRequest(req))

	// Drain the Request bytes the peer wrote to the wire.
	f.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = f.client.Read(buf)
	require.NoError(err)

	mockClock.Add(11 * time.Second)

	select {
	case got := <-f.queue:
		require.False(got.Successful)
		require.Same(req, got)
	case <-time.After(2 * time.Second):
		t.Fatal("expired request was not requeued")
	}
}
