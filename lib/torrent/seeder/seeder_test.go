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
	"testing"

	"swarmcore/core"
	"swarmcore/lib/torrent/session"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id         core.PeerID
	interested bool
	amChoking  bool
}

func newFakePeer(id core.PeerID, interested bool) *fakePeer {
	return &fakePeer{id: id, interested: interested, amChoking: true}
}

func (p *fakePeer) ID() core.PeerID           { return p.id }
func (p *fakePeer) PeerInterested() bool      { return p.interested }
func (p *fakePeer) AmChoking() bool           { return p.amChoking }
func (p *fakePeer) SetAmChoking(choking bool) { p.amChoking = choking }

type completeHaver struct{}

func (completeHaver) HasPiece(i int) bool { return false }

func TestRunOnceUnchokesFastestInterestedPeers(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	sess := session.New(completeHaver{}, 10, clk)
	s := New(Config{NumUnchokeSlots: 2}, core.PeerIDFixture(), core.InfoHashFixture(), sess, nil, clk)

	fast := newFakePeer(core.PeerIDFixture(), true)
	medium := newFakePeer(core.PeerIDFixture(), true)
	slow := newFakePeer(core.PeerIDFixture(), true)
	uninterested := newFakePeer(core.PeerIDFixture(), false)

	for _, p := range []*fakePeer{fast, medium, slow, uninterested} {
		s.AddPeer(p)
		sess.RegisterPeer(p.ID())
	}

	sess.AddPieceOwner(fast.ID(), 0)
	sess.RecordDownload(fast.ID(), 1000)
	sess.AddPieceOwner(medium.ID(), 1)
	sess.RecordDownload(medium.ID(), 500)
	sess.AddPieceOwner(slow.ID(), 2)
	sess.RecordDownload(slow.ID(), 10)

	s.runOnce()

	require.False(fast.amChoking)
	require.False(medium.amChoking)
	require.True(slow.amChoking)
	require.True(uninterested.amChoking)
}

func TestRunOnceFillsRemainingSlotsFromUninterestedPeersInRankOrder(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	sess := session.New(completeHaver{}, 10, clk)
	s := New(Config{NumUnchokeSlots: 3}, core.PeerIDFixture(), core.InfoHashFixture(), sess, nil, clk)

	interested := newFakePeer(core.PeerIDFixture(), true)
	fastUninterested := newFakePeer(core.PeerIDFixture(), false)
	slowUninterested := newFakePeer(core.PeerIDFixture(), false)
	slowestUninterested := newFakePeer(core.PeerIDFixture(), false)

	for _, p := range []*fakePeer{interested, fastUninterested, slowUninterested, slowestUninterested} {
		s.AddPeer(p)
		sess.RegisterPeer(p.ID())
	}

	sess.AddPieceOwner(interested.ID(), 0)
	sess.RecordDownload(interested.ID(), 100)
	sess.AddPieceOwner(fastUninterested.ID(), 1)
	sess.RecordDownload(fastUninterested.ID(), 1000)
	sess.AddPieceOwner(slowUninterested.ID(), 2)
	sess.RecordDownload(slowUninterested.ID(), 10)
	sess.AddPieceOwner(slowestUninterested.ID(), 3)
	sess.RecordDownload(slowestUninterested.ID(), 1)

	s.runOnce()

	// Only one interested peer exists but 3 slots are available: the
	// remaining two are filled from uninterested peers in rank order,
	// leaving the slowest of them still choked.
	require.False(interested.amChoking)
	require.False(fastUninterested.amChoking)
	require.False(slowUninterested.amChoking)
	require.True(slowestUninterested.amChoking)
}

func TestRunOnceOptimisticUnchokeRotatesOnThirdTick(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	sess := session.New(completeHaver{}, 10, clk)
	s := New(Config{NumUnchokeSlots: 0, OptimisticRotationTicks: 3}, core.PeerIDFixture(), core.InfoHashFixture(), sess, nil, clk)
	// applyDefaults treats a zero slot count as unset; clear the regular
	// slots directly so only the optimistic unchoke can apply.
	s.cfg.NumUnchokeSlots = 0

	p := newFakePeer(core.PeerIDFixture(), true)
	s.AddPeer(p)
	sess.RegisterPeer(p.ID())
	sess.AddPieceOwner(p.ID(), 0)

	s.runOnce()
	require.True(p.amChoking, "not yet a multiple of OptimisticRotationTicks")

	s.runOnce()
	require.True(p.amChoking)

	s.runOnce()
	require.False(p.amChoking, "third tick should grant an optimistic unchoke")
}

func TestRemovePeerStopsTrackingChoking(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	sess := session.New(completeHaver{}, 10, clk)
	s := New(Config{}, core.PeerIDFixture(), core.InfoHashFixture(), sess, nil, clk)

	p := newFakePeer(core.PeerIDFixture(), true)
	s.AddPeer(p)
	s.RemovePeer(p.ID())

	require.Empty(s.peers)
}
