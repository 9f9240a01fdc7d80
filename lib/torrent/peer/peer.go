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
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"swarmcore/core"
	"swarmcore/lib/torrent/blockrequest"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/session"
	"swarmcore/lib/torrent/storage"
	"swarmcore/lib/torrent/wire"
	"swarmcore/utils/log"

	"github.com/andres-erbsen/clock"
)

// ErrTerminated is returned by command methods once the peer actor has shut
// down.
var ErrTerminated = errors.New("peer: connection terminated")

// ErrNoCapacity is returned by SendRequest when the peer already has
// MaxPendingRequests outstanding.
var ErrNoCapacity = errors.New("peer: no pending request capacity")

// Peer is the actor that owns one remote connection: the socket, the
// protocol state machine, and the list of block requests currently
// outstanding against that remote. Every field below the mutex is owned
// exclusively by this actor's goroutines; other components communicate
// with it only through its exported command methods.
type Peer struct {
	id   core.PeerID
	self core.PeerID
	host string
	port int

	desc  *core.Descriptor
	store storage.Torrent
	sess  *session.Session
	net   networkevent.Producer

	conn net.Conn
	cfg  Config
	clk  clock.Clock

	completed chan<- *blockrequest.Request

	out      chan []byte
	done     chan struct{}
	closeErr error
	once     sync.Once

	mu              sync.Mutex
	amChoking       bool
	amInterested    bool
	peerChoking     bool
	peerInterested  bool
	pending         []*blockrequest.Request
	lastResponseAt  time.Time
	gotFirstMessage bool
}

// New wraps an already handshaken conn as a running Peer actor. remote is
// the peer id read from the handshake; host/port identify it for
// blacklisting purposes.
func New(
	conn net.Conn,
	remote core.PeerID,
	self core.PeerID,
	host string,
	port int,
	desc *core.Descriptor,
	store storage.Torrent,
	sess *session.Session,
	netProducer networkevent.Producer,
	completed chan<- *blockrequest.Request,
	cfg Config,
	clk clock.Clock,
) *Peer {
	return &Peer{
		id:             remote,
		self:           self,
		host:           host,
		port:           port,
		desc:           desc,
		store:          store,
		sess:           sess,
		net:            netProducer,
		conn:           conn,
		cfg:            cfg.applyDefaults(),
		clk:            clk,
		completed:      completed,
		out:            make(chan []byte, 8),
		done:           make(chan struct{}),
		amChoking:      true,
		amInterested:   false,
		peerChoking:    true,
		peerInterested: false,
		lastResponseAt: clk.Now(),
	}
}

// ID returns the remote's peer id.
func (p *Peer) ID() core.PeerID { return p.id }

// Host returns the remote's announced host.
func (p *Peer) Host() string { return p.host }

// Port returns the remote's announced port.
func (p *Peer) Port() int { return p.port }

func (p *Peer) String() string {
	return fmt.Sprintf("peer(%s, %s:%d)", p.id, p.host, p.port)
}

// PeerInterested reports whether the remote has told us it is interested.
func (p *Peer) PeerInterested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerInterested
}

// AmChoking reports our current choking state toward the remote.
func (p *Peer) AmChoking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amChoking
}

// PendingCount returns the number of block requests currently outstanding
// against this peer.
func (p *Peer) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Capacity returns how many more requests may be issued before hitting
// MaxPendingRequests.
func (p *Peer) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.MaxPendingRequests - len(p.pending)
}

// Run starts the peer's read loop and refresh ticker, and blocks until the
// connection terminates for any reason. It always sends an initial
// Bitfield announcing our current holdings, per the handshake-phase
// contract.
func (p *Peer) Run() {
	go p.writeLoop()

	bits := wire.PackBitfield(p.desc.NumPieces(), p.store.HasPiece)
	p.enqueueOut(wire.Serialize(wire.Bitfield(bits)))

	go p.refreshLoop()
	p.readLoop()

	<-p.done
}

// SetAmChoking sets our choking state toward the remote, sending Choke or
// Unchoke only if the value actually changes.
func (p *Peer) SetAmChoking(choking bool) {
	p.mu.Lock()
	changed := p.amChoking != choking
	p.amChoking = choking
	p.mu.Unlock()

	if !changed {
		return
	}
	if choking {
		p.enqueueOut(wire.Serialize(wire.Choke()))
	} else {
		p.enqueueOut(wire.Serialize(wire.Unchoke()))
	}
}

// SetAmInterested sets our interested state toward the remote, sending
// Interested or NotInterested only if the value actually changes.
func (p *Peer) SetAmInterested(interested bool) {
	p.mu.Lock()
	changed := p.amInterested != interested
	p.amInterested = interested
	p.mu.Unlock()

	if !changed {
		return
	}
	if interested {
		p.enqueueOut(wire.Serialize(wire.Interested()))
	} else {
		p.enqueueOut(wire.Serialize(wire.NotInterested()))
	}
}

// SendHave announces that we have completed piece i.
func (p *Peer) SendHave(i int) {
	p.enqueueOut(wire.Serialize(wire.Have(uint32(i))))
}

// SendRequest issues req on the wire and adds it to this peer's pending
// list, enforcing MaxPendingRequests.
func (p *Peer) SendRequest(req *blockrequest.Request) error {
	p.mu.Lock()
	if len(p.pending) >= p.cfg.MaxPendingRequests {
		p.mu.Unlock()
		return ErrNoCapacity
	}
	p.pending = append(p.pending, req)
	p.mu.Unlock()

	p.enqueueOut(wire.Serialize(wire.Request(uint32(req.Piece), req.Begin, req.Length)))
	return nil
}

// SendCancel sends a Cancel for req and removes it from this peer's
// pending list.
func (p *Peer) SendCancel(req *blockrequest.Request) {
	p.mu.Lock()
	p.removePendingLocked(req)
	p.mu.Unlock()

	p.enqueueOut(wire.Serialize(wire.Cancel(uint32(req.Piece), req.Begin, req.Length)))
}

// Terminate closes the connection, if not already closed.
func (p *Peer) Terminate() {
	p.terminate(nil)
}

// Err returns the error which caused termination, or nil if the peer is
// still running or was terminated cleanly.
func (p *Peer) Err() error {
	return p.closeErr
}

// Done returns a channel which is closed once the peer has terminated.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) enqueueOut(b []byte) {
	select {
	case p.out <- b:
	case <-p.done:
	}
}

func (p *Peer) writeLoop() {
	for {
		select {
		case b := <-p.out:
			if _, err := p.conn.Write(b); err != nil {
				p.terminate(err)
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) refreshLoop() {
	ticker := time.NewTicker(p.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refreshOnce()
		case <-p.done:
			return
		}
	}
}

func (p *Peer) refreshOnce() {
	now := p.clk.Now()

	p.mu.Lock()
	idleFor := now.Sub(p.lastResponseAt)
	var expired []*blockrequest.Request
	kept := p.pending[:0:0]
	for _, req := range p.pending {
		if req.Expired(now) {
			expired = append(expired, req)
		} else {
			kept = append(kept, req)
		}
	}
	p.pending = kept
	p.mu.Unlock()

	for _, req := range expired {
		req.Successful = false
		p.emitCompleted(req)
	}

	if idleFor > p.cfg.IdleTimeout {
		p.terminate(fmt.Errorf("peer: idle for %s", idleFor))
	}
}

func (p *Peer) readLoop() {
	buf := make([]byte, 0, p.cfg.MaxReadChunk)
	chunk := make([]byte, p.cfg.MaxReadChunk)

	for {
		n, err := p.conn.Read(chunk)
		if err != nil {
			p.terminate(err)
			return
		}
		buf = append(buf, chunk[:n]...)

		p.mu.Lock()
		p.lastResponseAt = p.clk.Now()
		p.mu.Unlock()

		for {
			msg, rest, perr := wire.ParseFirst(buf)
			if perr == wire.ErrIncomplete {
				break
			}
			if perr != nil {
				p.terminate(perr)
				return
			}
			buf = rest
			if err := p.handle(msg); err != nil {
				p.terminate(err)
				return
			}
		}
	}
}

func (p *Peer) handle(msg wire.Message) error {
	if msg.IsKeepAlive() {
		return nil
	}

	p.mu.Lock()
	isFirst := !p.gotFirstMessage
	p.gotFirstMessage = true
	p.mu.Unlock()

	switch msg.ID {
	case wire.IDChoke:
		p.mu.Lock()
		p.peerChoking = true
		p.mu.Unlock()
		p.sess.SetPeerChoking(p.id, true)
		if p.net != nil {
			p.net.Produce(networkevent.PeerChokedEvent(p.desc.InfoHash, p.self, p.id))
		}
	case wire.IDUnchoke:
		p.mu.Lock()
		p.peerChoking = false
		p.mu.Unlock()
		p.sess.SetPeerChoking(p.id, false)
		if p.net != nil {
			p.net.Produce(networkevent.PeerUnchokedEvent(p.desc.InfoHash, p.self, p.id))
		}
	case wire.IDInterested:
		p.mu.Lock()
		p.peerInterested = true
		p.mu.Unlock()
	case wire.IDNotInterested:
		p.mu.Lock()
		p.peerInterested = false
		p.mu.Unlock()
	case wire.IDHave:
		p.sess.AddPieceOwner(p.id, int(msg.Piece))
	case wire.IDBitfield:
		if !isFirst {
			return wire.ErrMalformed
		}
		bits, err := wire.UnpackBitfield(msg.Bitfield, p.desc.NumPieces())
		if err != nil {
			return err
		}
		for i, has := range bits {
			if has {
				p.sess.AddPieceOwner(p.id, i)
			}
		}
	case wire.IDRequest:
		return p.handleRequest(msg)
	case wire.IDPiece:
		p.handlePiece(msg)
	case wire.IDCancel, wire.IDPort:
		// Ignored: a Cancel from the remote does not withdraw a queued reply,
		// and there is no DHT.
	}
	return nil
}

func (p *Peer) handleRequest(msg wire.Message) error {
	p.mu.Lock()
	choking := p.amChoking
	p.mu.Unlock()

	if choking || msg.Length > wire.MaxRequestLength {
		return nil
	}
	r, err := p.store.GetPieceReader(int(msg.Piece))
	if err != nil {
		// Peer asked for a piece we don't have; not a protocol violation on
		// its own, just ignore.
		return nil
	}
	defer r.Close()

	full, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	end := int64(msg.Begin) + int64(msg.Length)
	if end > int64(len(full)) {
		return nil
	}
	block := full[msg.Begin:end]

	p.enqueueOut(wire.Serialize(wire.Piece(msg.Piece, msg.Begin, block)))
	p.sess.IncrUploaded(uint64(msg.Length))
	return nil
}

func (p *Peer) handlePiece(msg wire.Message) {
	p.mu.Lock()
	var matched *blockrequest.Request
	for i, req := range p.pending {
		if req.Matches(int(msg.Piece), msg.Begin, len(msg.Block)) {
			matched = req
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if matched == nil {
		// Delayed reply to an already-expired request; discard silently.
		return
	}

	matched.Data = msg.Block
	matched.Successful = true
	matched.CompletedBy = p.id
	p.sess.RecordDownload(p.id, len(msg.Block))
	p.emitCompleted(matched)
}

func (p *Peer) removePendingLocked(req *blockrequest.Request) {
	for i, r := range p.pending {
		if r == req {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}

func (p *Peer) emitCompleted(req *blockrequest.Request) {
	select {
	case p.completed <- req:
	case <-p.done:
	}
}

func (p *Peer) terminate(cause error) {
	p.once.Do(func() {
		p.closeErr = cause
		close(p.done)
		p.conn.Close()

		p.mu.Lock()
		pending := p.pending
		p.pending = nil
		p.mu.Unlock()

		for _, req := range pending {
			req.Successful = false
			select {
			case p.completed <- req:
			default:
				log.Warnf("%s: dropping failed request for piece %d on shutdown", p, req.Piece)
			}
		}

		p.sess.RemovePeer(p.id)
	})
}
