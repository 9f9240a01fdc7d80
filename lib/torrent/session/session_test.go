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
package session

import (
	"testing"
	"time"

	"swarmcore/core"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

type noneComplete struct{}

func (noneComplete) HasPiece(i int) bool { return false }

func TestAddPieceOwnerUpdatesBothIndices(t *testing.T) {
	require := require.New(t)

	s := New(noneComplete{}, 3, clock.NewMock())
	peerA := core.PeerIDFixture()
	peerB := core.PeerIDFixture()

	s.AddPieceOwner(peerA, 0)
	s.AddPieceOwner(peerA, 1)
	s.AddPieceOwner(peerB, 1)

	require.ElementsMatch([]int{0, 1}, s.OwnedPieces(peerA))
	require.ElementsMatch([]int{1}, s.OwnedPieces(peerB))
	require.ElementsMatch([]core.PeerID{peerA}, s.Owners(0))
	require.ElementsMatch([]core.PeerID{peerA, peerB}, s.Owners(1))
}

func TestRemovePeerIsMutualInverse(t *testing.T) {
	require := require.New(t)

	s := New(noneComplete{}, 3, clock.NewMock())
	peerA := core.PeerIDFixture()
	peerB := core.PeerIDFixture()

	s.AddPieceOwner(peerA, 0)
	s.AddPieceOwner(peerB, 0)
	s.AddPieceOwner(peerB, 1)

	s.RemovePeer(peerA)

	require.Empty(s.OwnedPieces(peerA))
	require.ElementsMatch([]core.PeerID{peerB}, s.Owners(0))
	require.ElementsMatch([]int{1}, s.OwnedPieces(peerB))
}

func TestRarestFirstPrefersLeastOwnedPiece(t *testing.T) {
	require := require.New(t)

	s := New(noneComplete{}, 3, clock.NewMock())
	peerA := core.PeerIDFixture()
	peerB := core.PeerIDFixture()

	// Piece 1 is owned by both peers (rarity 2); pieces 0 and 2 are rarer.
	s.AddPieceOwner(peerA, 0)
	s.AddPieceOwner(peerA, 1)
	s.AddPieceOwner(peerB, 1)
	s.AddPieceOwner(peerB, 2)

	rarest, ok := s.RarestIn([]int{0, 1, 2})
	require.True(ok)
	require.NotEqual(1, rarest)
}

func TestRarestInTieBreaksOnLowestIndex(t *testing.T) {
	require := require.New(t)

	s := New(noneComplete{}, 3, clock.NewMock())
	rarest, ok := s.RarestIn([]int{2, 0, 1})
	require.True(ok)
	require.Equal(0, rarest)
}

func TestInterestingAndUnchokingIntersection(t *testing.T) {
	require := require.New(t)

	s := New(noneComplete{}, 2, clock.NewMock())
	peerA := core.PeerIDFixture()
	peerB := core.PeerIDFixture()

	s.AddPieceOwner(peerA, 0)
	s.AddPieceOwner(peerB, 0)
	s.SetPeerChoking(peerA, false)
	s.SetPeerChoking(peerB, true)

	require.ElementsMatch([]core.PeerID{peerA}, s.InterestingAndUnchoking())
}

type completeExcept struct {
	complete map[int]bool
}

func (c completeExcept) HasPiece(i int) bool { return c.complete[i] }

func TestRecordCompletedPieceDropsSatisfiedPeers(t *testing.T) {
	require := require.New(t)

	haver := completeExcept{complete: map[int]bool{}}
	s := New(haver, 2, clock.NewMock())
	peer := core.PeerIDFixture()

	s.AddPieceOwner(peer, 0)
	require.Contains(s.interesting, peer)

	haver.complete[0] = true
	s.RecordCompletedPiece(0)
	require.NotContains(s.interesting, peer)
}

func TestDownloadRateAccumulatesWithinWindow(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	s := New(noneComplete{}, 1, clk)
	peer := core.PeerIDFixture()

	s.RecordDownload(peer, 16384)
	clk.Add(time.Second)
	s.RecordDownload(peer, 16384)

	require.Greater(s.DownloadRate(peer), float64(0))
}
