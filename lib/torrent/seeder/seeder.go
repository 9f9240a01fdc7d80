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
package seeder

import (
	"math/rand"
	"sort"
	"sync"

	"swarmcore/core"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/session"

	"github.com/andres-erbsen/clock"
)

// PeerHandle is the subset of the peer actor the choking algorithm needs.
type PeerHandle interface {
	ID() core.PeerID
	PeerInterested() bool
	AmChoking() bool
	SetAmChoking(choking bool)
}

// Seeder runs the periodic choking cycle for a single swarm.
type Seeder struct {
	cfg  Config
	self core.PeerID
	hash core.InfoHash
	sess *session.Session
	net  networkevent.Producer
	clk  clock.Clock
	rng  *rand.Rand

	mu    sync.Mutex
	peers map[core.PeerID]PeerHandle
	tick  int

	// optimistic is the peer holding the current optimistic unchoke, if any.
	optimistic *core.PeerID
}

// New constructs a Seeder.
func New(cfg Config, self core.PeerID, hash core.InfoHash, sess *session.Session, net networkevent.Producer, clk clock.Clock) *Seeder {
	return &Seeder{
		cfg:   cfg.applyDefaults(),
		self:  self,
		hash:  hash,
		sess:  sess,
		net:   net,
		clk:   clk,
		rng:   rand.New(rand.NewSource(clk.Now().UnixNano())),
		peers: make(map[core.PeerID]PeerHandle),
	}
}

// AddPeer registers p with the choking algorithm.
func (s *Seeder) AddPeer(p PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID()] = p
}

// RemovePeer unregisters a terminated peer.
func (s *Seeder) RemovePeer(id core.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

// Run drives the choking cycle on cfg.ChokingWait ticks until the session
// stops.
func (s *Seeder) Run() {
	t := s.clk.Ticker(s.cfg.ChokingWait)
	defer t.Stop()
	for s.sess.Active() {
		<-t.C
		if !s.sess.Active() {
			return
		}
		s.runOnce()
	}
}

// runOnce executes a single choking cycle. Called directly by tests.
func (s *Seeder) runOnce() {
	s.mu.Lock()
	peers := make([]PeerHandle, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.tick++
	tick := s.tick
	prevOptimistic := s.optimistic
	s.mu.Unlock()

	ranked := make([]PeerHandle, len(peers))
	copy(ranked, peers)
	sort.Slice(ranked, func(i, j int) bool {
		return s.sess.DownloadRate(ranked[i].ID()) > s.sess.DownloadRate(ranked[j].ID())
	})

	unchoke := make(map[core.PeerID]bool, s.cfg.NumUnchokeSlots)
	for _, p := range ranked {
		if len(unchoke) >= s.cfg.NumUnchokeSlots {
			break
		}
		if p.PeerInterested() {
			unchoke[p.ID()] = true
		}
	}
	// Fewer than NumUnchokeSlots interested peers: fill the remaining
	// regular slots from the rest of the ranked list.
	for _, p := range ranked {
		if len(unchoke) >= s.cfg.NumUnchokeSlots {
			break
		}
		if !unchoke[p.ID()] {
			unchoke[p.ID()] = true
		}
	}

	if tick%s.cfg.OptimisticRotationTicks == 0 {
		var remainder []PeerHandle
		for _, p := range ranked {
			if !unchoke[p.ID()] {
				remainder = append(remainder, p)
			}
		}
		var optimistic *core.PeerID
		if len(remainder) > 0 {
			pick := remainder[s.rng.Intn(len(remainder))]
			unchoke[pick.ID()] = true
			id := pick.ID()
			optimistic = &id
			if s.net != nil {
				s.net.Produce(networkevent.OptimisticUnchokeEvent(s.hash, s.self, pick.ID()))
			}
		}
		s.mu.Lock()
		s.optimistic = optimistic
		s.mu.Unlock()
	} else if prevOptimistic != nil {
		// Between rotations the current optimistic unchoke stays in place.
		for _, p := range ranked {
			if p.ID() == *prevOptimistic {
				unchoke[p.ID()] = true
			}
		}
	}

	for _, p := range peers {
		shouldUnchoke := unchoke[p.ID()]
		if shouldUnchoke && p.AmChoking() {
			p.SetAmChoking(false)
			s.cfg.Stats.Counter("peers_unchoked").Inc(1)
			if s.net != nil {
				s.net.Produce(networkevent.PeerUnchokedEvent(s.hash, s.self, p.ID()))
			}
		} else if !shouldUnchoke && !p.AmChoking() {
			p.SetAmChoking(true)
			s.cfg.Stats.Counter("peers_choked").Inc(1)
			if s.net != nil {
				s.net.Produce(networkevent.PeerChokedEvent(s.hash, s.self, p.ID()))
			}
		}
	}
	s.cfg.Stats.Gauge("unchoke_slots_used").Update(float64(len(unchoke)))
}
