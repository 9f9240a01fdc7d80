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

// Package session owns the process-wide, mutable view of a single swarm:
// which peer owns which piece, piece rarity, the set of peers currently
// unchoking us, and per-peer download throughput. It is shared by every
// peer actor, the downloader and the seeder; every exported method is a
// single critical section and never blocks on I/O.
package session

import (
	"sort"
	"sync"

	"swarmcore/core"

	"github.com/andres-erbsen/clock"
)

// pieceHaver reports whether a piece has already been fully downloaded.
// Satisfied by storage.Torrent; kept narrow here so this package does not
// need to import the storage layer.
type pieceHaver interface {
	HasPiece(i int) bool
}

// Session is the shared, serialized swarm state described in the data
// model: piece ownership in both directions, a rarity index, the unchoking
// and interesting peer sets, and per-peer download rates.
type Session struct {
	mu sync.Mutex

	haver     pieceHaver
	numPieces int

	pieceOwners map[int]map[core.PeerID]struct{}
	ownedPieces map[core.PeerID]map[int]struct{}
	rarity      []int

	peersUnchoking map[core.PeerID]struct{}
	interesting    map[core.PeerID]struct{}

	rates map[core.PeerID]*rollingRate
	clk   clock.Clock

	uploaded uint64
	active   bool
}

// New returns a new Session tracking numPieces pieces, consulting haver to
// determine which pieces are already complete.
func New(haver pieceHaver, numPieces int, clk clock.Clock) *Session {
	return &Session{
		haver:          haver,
		numPieces:      numPieces,
		pieceOwners:    make(map[int]map[core.PeerID]struct{}),
		ownedPieces:    make(map[core.PeerID]map[int]struct{}),
		rarity:         make([]int, numPieces),
		peersUnchoking: make(map[core.PeerID]struct{}),
		interesting:    make(map[core.PeerID]struct{}),
		rates:          make(map[core.PeerID]*rollingRate),
		clk:            clk,
		active:         true,
	}
}

// RegisterPeer makes peer visible to the session (ConnectedPeers, rate
// tracking) even before it announces owning any piece.
func (s *Session) RegisterPeer(peer core.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedPieces[peer]; !ok {
		s.ownedPieces[peer] = make(map[int]struct{})
	}
	if _, ok := s.rates[peer]; !ok {
		s.rates[peer] = newRollingRate(s.clk)
	}
}

// AddPieceOwner records that peer owns piece, updating the rarity index and
// the peer's interesting status.
func (s *Session) AddPieceOwner(peer core.PeerID, piece int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addPieceOwnerLocked(peer, piece)
}

func (s *Session) addPieceOwnerLocked(peer core.PeerID, piece int) {
	owners, ok := s.pieceOwners[piece]
	if !ok {
		owners = make(map[core.PeerID]struct{})
		s.pieceOwners[piece] = owners
	}
	if _, ok := owners[peer]; ok {
		return
	}
	owners[peer] = struct{}{}
	s.rarity[piece]++

	pieces, ok := s.ownedPieces[peer]
	if !ok {
		pieces = make(map[int]struct{})
		s.ownedPieces[peer] = pieces
	}
	pieces[piece] = struct{}{}

	if !s.haver.HasPiece(piece) {
		s.interesting[peer] = struct{}{}
	}

	if _, ok := s.rates[peer]; !ok {
		s.rates[peer] = newRollingRate(s.clk)
	}
}

// RemovePeer removes every trace of peer from the session: piece ownership,
// rarity counts, download rate, and the unchoking/interesting sets.
func (s *Session) RemovePeer(peer core.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for piece := range s.ownedPieces[peer] {
		if owners := s.pieceOwners[piece]; owners != nil {
			delete(owners, peer)
			s.rarity[piece]--
			if len(owners) == 0 {
				delete(s.pieceOwners, piece)
			}
		}
	}
	delete(s.ownedPieces, peer)
	delete(s.rates, peer)
	delete(s.interesting, peer)
	delete(s.peersUnchoking, peer)
}

// SetPeerChoking updates whether peer is currently choking us, maintaining
// the peersUnchoking set.
func (s *Session) SetPeerChoking(peer core.PeerID, choking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if choking {
		delete(s.peersUnchoking, peer)
	} else {
		s.peersUnchoking[peer] = struct{}{}
	}
}

// RecordCompletedPiece recomputes the interesting set now that piece i is
// fully downloaded: any peer who only offered i may no longer be
// interesting.
func (s *Session) RecordCompletedPiece(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for peer, pieces := range s.ownedPieces {
		stillUseful := false
		for p := range pieces {
			if !s.haver.HasPiece(p) {
				stillUseful = true
				break
			}
		}
		if stillUseful {
			s.interesting[peer] = struct{}{}
		} else {
			delete(s.interesting, peer)
		}
	}
}

// RarestIn returns the rarest piece among candidates, breaking ties toward
// the lowest piece index. It returns false if candidates is empty.
func (s *Session) RarestIn(candidates []int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candidates) == 0 {
		return 0, false
	}
	sorted := append([]int(nil), candidates...)
	sort.Ints(sorted)

	best := sorted[0]
	bestRarity := s.rarity[best]
	for _, p := range sorted[1:] {
		if s.rarity[p] < bestRarity {
			best = p
			bestRarity = s.rarity[p]
		}
	}
	return best, true
}

// IsInteresting reports whether peer owns at least one piece we still need.
func (s *Session) IsInteresting(peer core.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.interesting[peer]
	return ok
}

// InterestingAndUnchoking returns every peer that is both interesting to us
// and not currently choking us.
func (s *Session) InterestingAndUnchoking() []core.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var peers []core.PeerID
	for peer := range s.interesting {
		if _, ok := s.peersUnchoking[peer]; ok {
			peers = append(peers, peer)
		}
	}
	return peers
}

// Owners returns the peers known to own piece.
func (s *Session) Owners(piece int) []core.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners := s.pieceOwners[piece]
	peers := make([]core.PeerID, 0, len(owners))
	for p := range owners {
		peers = append(peers, p)
	}
	return peers
}

// OwnedPieces returns the set of pieces peer is known to own.
func (s *Session) OwnedPieces(peer core.PeerID) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.ownedPieces[peer]
	pieces := make([]int, 0, len(owned))
	for p := range owned {
		pieces = append(pieces, p)
	}
	return pieces
}

// RecordDownload attributes n downloaded bytes to peer for rate tracking.
func (s *Session) RecordDownload(peer core.PeerID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rates[peer]
	if !ok {
		r = newRollingRate(s.clk)
		s.rates[peer] = r
	}
	r.record(int64(n))
}

// DownloadRate returns peer's trailing download throughput in bytes/sec.
func (s *Session) DownloadRate(peer core.PeerID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rates[peer]
	if !ok {
		return 0
	}
	return r.bytesPerSecond()
}

// IncrUploaded adds n to the total bytes uploaded this session.
func (s *Session) IncrUploaded(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded += n
}

// Uploaded returns the total bytes uploaded this session.
func (s *Session) Uploaded() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded
}

// Active reports whether the swarm is still running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop marks the swarm inactive, signalling every loop to exit at its next
// suspension point.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// ConnectedPeers returns every peer currently tracked by the session.
func (s *Session) ConnectedPeers() []core.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]core.PeerID, 0, len(s.ownedPieces))
	for p := range s.ownedPieces {
		peers = append(peers, p)
	}
	return peers
}
