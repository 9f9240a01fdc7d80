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
package downloader

import (
	"math/rand"
	"sync"
	"time"

	"swarmcore/core"
	"swarmcore/lib/torrent/blockrequest"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/session"
	"swarmcore/lib/torrent/storage"
	"swarmcore/utils/log"

	"github.com/andres-erbsen/clock"
)

// PeerHandle is the subset of the peer actor the downloader needs: enough
// to issue requests and announce completed pieces, without holding a
// reference to the actor's internal state.
type PeerHandle interface {
	ID() core.PeerID
	Capacity() int
	SetAmInterested(interested bool)
	SendRequest(req *blockrequest.Request) error
	SendHave(piece int)
	Host() string
	Port() int
	Terminate()
}

// Blacklist records peers which supplied data failing a piece hash check.
type Blacklist interface {
	Add(host string, port int)
}

// Downloader is the single-task request scheduler described by the
// component design: it assigns pieces to peers rarest-first, pipelines
// block requests per peer, and detects and reacts to endgame and
// completion.
type Downloader struct {
	cfg   Config
	desc  *core.Descriptor
	self  core.PeerID
	store storage.Torrent
	sess  *session.Session
	net   networkevent.Producer
	clk   clock.Clock

	blacklist Blacklist
	completed chan *blockrequest.Request

	mu                sync.Mutex
	peers             map[core.PeerID]PeerHandle
	assignedPiece     map[core.PeerID]*int
	assignedRequests  map[int]map[blockKey]*blockrequest.Request
	pieceContributors map[int]map[core.PeerID]struct{}
	endgame           bool
}

type blockKey struct {
	begin, length uint32
}

// New constructs a Downloader. completed is the shared queue fed by every
// connected peer actor with resolved (successful or expired) block
// requests.
func New(
	cfg Config,
	desc *core.Descriptor,
	self core.PeerID,
	store storage.Torrent,
	sess *session.Session,
	net networkevent.Producer,
	blacklist Blacklist,
	completed chan *blockrequest.Request,
	clk clock.Clock,
) *Downloader {
	return &Downloader{
		cfg:               cfg.applyDefaults(),
		desc:              desc,
		self:              self,
		store:             store,
		sess:              sess,
		net:               net,
		clk:               clk,
		blacklist:         blacklist,
		completed:         completed,
		peers:             make(map[core.PeerID]PeerHandle),
		assignedPiece:     make(map[core.PeerID]*int),
		assignedRequests:  make(map[int]map[blockKey]*blockrequest.Request),
		pieceContributors: make(map[int]map[core.PeerID]struct{}),
	}
}

// AddPeer registers p with the scheduler.
func (d *Downloader) AddPeer(p PeerHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[p.ID()] = p
}

// RemovePeer unregisters a terminated peer and frees its assignment.
func (d *Downloader) RemovePeer(id core.PeerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, id)
	delete(d.assignedPiece, id)
}

// Run drives the scheduler loop until the torrent completes or the swarm
// runs out of usable peers. It returns when the swarm should stop.
func (d *Downloader) Run() {
	for d.sess.Active() {
		if !d.ensureAvailablePeers() {
			log.Infof("downloader: no usable peers after max wait, stopping")
			d.sess.Stop()
			return
		}

		d.distributeAll()

		req, ok := d.awaitNext()
		if !ok {
			log.Infof("downloader: no completions within timeout, stopping")
			d.sess.Stop()
			return
		}
		if req != nil {
			d.handleReply(req)
		}

		if d.store.Complete() {
			log.Infof("downloader: torrent complete")
			if d.net != nil {
				d.net.Produce(networkevent.TorrentCompleteEvent(d.desc.InfoHash, d.self))
			}
			d.sess.Stop()
			return
		}
	}
}

func (d *Downloader) ensureAvailablePeers() bool {
	waited := time.Duration(0)
	for {
		if len(d.sess.InterestingAndUnchoking()) > 0 {
			return true
		}
		if waited >= d.cfg.MaxPeerWait {
			return false
		}
		step := d.cfg.PeerWaitStep
		if waited+step > d.cfg.MaxPeerWait {
			step = d.cfg.MaxPeerWait - waited
		}
		d.clk.Sleep(step)
		waited += step
	}
}

func (d *Downloader) awaitNext() (*blockrequest.Request, bool) {
	select {
	case req := <-d.completed:
		return req, true
	case <-d.clk.After(d.cfg.NoRequestTimeout):
		return nil, len(d.sess.InterestingAndUnchoking()) > 0
	}
}

func (d *Downloader) distributeAll() {
	d.mu.Lock()
	peers := make([]PeerHandle, 0, len(d.peers))
	for _, p := range d.peers {
		peers = append(peers, p)
	}
	d.mu.Unlock()

	for _, p := range peers {
		d.distributeToPeer(p)
	}
}

func (d *Downloader) distributeToPeer(p PeerHandle) {
	interesting := d.sess.IsInteresting(p.ID())
	p.SetAmInterested(interesting)
	if !interesting {
		return
	}

	capacity := p.Capacity()
	if capacity <= 0 {
		return
	}

	d.mu.Lock()
	pi := d.assignedPiece[p.ID()]
	needsAssignment := pi == nil || d.store.HasPiece(*pi) || len(d.store.MissingBlocks(*pi)) == 0
	d.mu.Unlock()

	if needsAssignment {
		assigned, ok := d.assignPiece(p.ID())
		if !ok {
			return
		}
		pi = &assigned
		d.mu.Lock()
		d.assignedPiece[p.ID()] = pi
		d.mu.Unlock()
	}

	d.updateEndgame()

	pool := d.requestPool(*pi)
	if len(pool) == 0 {
		return
	}
	n := capacity
	if n > len(pool) {
		n = len(pool)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i := 0; i < n; i++ {
		spec := pool[i]
		req := blockrequest.New(*pi, spec.Begin, spec.Length, d.clk.Now(), d.cfg.RequestTimeout)
		if err := p.SendRequest(req); err != nil {
			break
		}
		d.mu.Lock()
		m, ok := d.assignedRequests[*pi]
		if !ok {
			m = make(map[blockKey]*blockrequest.Request)
			d.assignedRequests[*pi] = m
		}
		m[blockKey{spec.Begin, spec.Length}] = req
		d.mu.Unlock()

		if d.net != nil {
			d.net.Produce(networkevent.RequestPieceEvent(d.desc.InfoHash, d.self, p.ID(), *pi))
		}
	}
}

// assignPiece picks the rarest incomplete piece peer owns, preferring one
// not already assigned to another peer.
func (d *Downloader) assignPiece(peer core.PeerID) (int, bool) {
	owned := d.sess.OwnedPieces(peer)

	d.mu.Lock()
	inUse := make(map[int]bool)
	for _, p := range d.assignedPiece {
		if p != nil {
			inUse[*p] = true
		}
	}
	d.mu.Unlock()

	var candidates, unassigned []int
	for _, pi := range owned {
		if d.store.HasPiece(pi) {
			continue
		}
		candidates = append(candidates, pi)
		if !inUse[pi] {
			unassigned = append(unassigned, pi)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	pool := candidates
	if len(unassigned) > 0 {
		pool = unassigned
	}
	return d.sess.RarestIn(pool)
}

// requestPool returns the blocks of piece pi which should be (re-)requested
// right now: unsent blocks, or, once those are exhausted or the swarm is in
// endgame, every still-missing block (allowing duplicate in-flight
// requests).
func (d *Downloader) requestPool(pi int) []storage.BlockSpec {
	missing := d.store.MissingBlocks(pi)

	d.mu.Lock()
	sent := d.assignedRequests[pi]
	endgame := d.endgame
	d.mu.Unlock()

	if endgame {
		return missing
	}

	var unsent []storage.BlockSpec
	for _, spec := range missing {
		if sent == nil {
			unsent = append(unsent, spec)
			continue
		}
		if _, ok := sent[blockKey{spec.Begin, spec.Length}]; !ok {
			unsent = append(unsent, spec)
		}
	}
	if len(unsent) == 0 {
		return missing
	}
	return unsent
}

func (d *Downloader) updateEndgame() {
	incomplete := d.store.MissingPieces()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.endgame && len(incomplete) > 0 && len(incomplete) <= d.cfg.EndgamePieces {
		d.endgame = true
		d.cfg.Stats.Counter("endgame_entered").Inc(1)
		if d.net != nil {
			d.net.Produce(networkevent.EndgameEnteredEvent(d.desc.InfoHash, d.self))
		}
	}
}

func (d *Downloader) handleReply(req *blockrequest.Request) {
	if !req.Successful {
		// The block remains among MissingBlocks and will be re-drawn on the
		// next distribute pass; nothing further to do here.
		return
	}

	err := d.store.WriteBlock(req.Data, req.Piece, req.Begin)

	// Record the contributor before branching on the outcome: a block that
	// completes a piece but fails its hash check must still blacklist
	// whoever sent it, so it needs to be in pieceContributors for
	// onHashMismatch to find.
	if err == nil || err == storage.ErrInvalidPieceHash {
		d.addContributor(req.Piece, req.CompletedBy)
	}

	switch err {
	case nil:
		if d.store.HasPiece(req.Piece) {
			d.onPieceComplete(req.Piece)
		}
	case storage.ErrInvalidPieceHash:
		d.onHashMismatch(req.Piece)
	case storage.ErrPieceComplete:
		// Duplicate/stale reply for an already-committed piece; ignore.
	default:
		log.Errorf("downloader: write block for piece %d: %s", req.Piece, err)
	}
}

func (d *Downloader) addContributor(pi int, peer core.PeerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	contributors, ok := d.pieceContributors[pi]
	if !ok {
		contributors = make(map[core.PeerID]struct{})
		d.pieceContributors[pi] = contributors
	}
	contributors[peer] = struct{}{}
}

func (d *Downloader) onPieceComplete(pi int) {
	d.cfg.Stats.Counter("pieces_completed").Inc(1)
	d.sess.RecordCompletedPiece(pi)

	d.mu.Lock()
	peers := make([]PeerHandle, 0, len(d.peers))
	for _, p := range d.peers {
		peers = append(peers, p)
	}
	delete(d.pieceContributors, pi)
	delete(d.assignedRequests, pi)
	for peer, assigned := range d.assignedPiece {
		if assigned != nil && *assigned == pi {
			d.assignedPiece[peer] = nil
		}
	}
	d.mu.Unlock()

	for _, p := range peers {
		p.SendHave(pi)
	}
}

func (d *Downloader) onHashMismatch(pi int) {
	d.cfg.Stats.Counter("piece_hash_mismatches").Inc(1)

	d.mu.Lock()
	contributors := d.pieceContributors[pi]
	delete(d.pieceContributors, pi)
	delete(d.assignedRequests, pi)
	var toBlacklist []PeerHandle
	for peer := range contributors {
		if p, ok := d.peers[peer]; ok {
			toBlacklist = append(toBlacklist, p)
		}
	}
	d.mu.Unlock()

	for _, p := range toBlacklist {
		d.blacklist.Add(p.Host(), p.Port())
		p.Terminate()
	}
}
