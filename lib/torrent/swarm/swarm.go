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
package swarm

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"swarmcore/core"
	"swarmcore/lib/torrent/blockrequest"
	"swarmcore/lib/torrent/downloader"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/peer"
	"swarmcore/lib/torrent/seeder"
	"swarmcore/lib/torrent/session"
	"swarmcore/lib/torrent/storage"
	"swarmcore/utils/closers"
	"swarmcore/utils/log"
	"swarmcore/utils/netutil"

	"github.com/andres-erbsen/clock"
)

// Swarm runs the full lifecycle of a single torrent: listening for
// connections, announcing to discover peers, dialing them, and driving the
// downloader and seeder against the resulting peer set.
type Swarm struct {
	cfg       Config
	pctx      core.PeerContext
	desc      *core.Descriptor
	store     storage.Torrent
	announcer core.Announcer
	net       networkevent.Producer
	clk       clock.Clock

	sess       *session.Session
	dl         *downloader.Downloader
	sd         *seeder.Seeder
	blacklist  *Blacklist
	completed  chan *blockrequest.Request

	mu       sync.Mutex
	conns    map[core.PeerID]*peer.Peer
	listener net.Listener

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Swarm. The returned Swarm does not begin listening,
// announcing, or scheduling until Start is called.
func New(
	cfg Config,
	pctx core.PeerContext,
	desc *core.Descriptor,
	store storage.Torrent,
	announcer core.Announcer,
	net networkevent.Producer,
	clk clock.Clock,
) *Swarm {
	cfg = cfg.applyDefaults()

	sess := session.New(store, desc.NumPieces(), clk)
	blacklist := NewBlacklist(cfg.BlacklistDuration, clk)
	completed := make(chan *blockrequest.Request, 256)

	dl := downloader.New(cfg.Downloader, desc, pctx.PeerID, store, sess, net, blacklist, completed, clk)
	sd := seeder.New(cfg.Seeder, pctx.PeerID, desc.InfoHash, sess, net, clk)

	return &Swarm{
		cfg:       cfg,
		pctx:      pctx,
		desc:      desc,
		store:     store,
		announcer: announcer,
		net:       net,
		clk:       clk,
		sess:      sess,
		dl:        dl,
		sd:        sd,
		blacklist: blacklist,
		completed: completed,
		conns:     make(map[core.PeerID]*peer.Peer),
		done:      make(chan struct{}),
	}
}

// Start opens the listening socket and begins the announce, accept,
// download and choking loops. It returns once the listener is open; the
// loops continue to run in the background until Stop is called or the
// torrent completes.
func (s *Swarm) Start() error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.pctx.Port))
	if err != nil {
		return fmt.Errorf("listen: %s", err)
	}
	s.listener = l

	if s.net != nil {
		s.net.Produce(networkevent.SwarmStartedEvent(
			s.desc.InfoHash, s.pctx.PeerID, s.store.Bitfield(), s.cfg.MaxOpenConnections))
	}

	s.wg.Add(4)
	go s.acceptLoop()
	go s.announceLoop()
	go func() {
		defer s.wg.Done()
		s.dl.Run()
		if s.store.Complete() {
			s.cfg.Stats.Gauge("torrent_complete").Update(1)
		}
		go s.Stop()
	}()
	go func() {
		defer s.wg.Done()
		s.sd.Run()
	}()

	return nil
}

// Stop tears down the swarm: it stops the session (ending the downloader
// and seeder loops), closes the listener, and terminates every connected
// peer.
func (s *Swarm) Stop() {
	s.stopOnce.Do(func() {
		s.sess.Stop()
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.Lock()
		conns := make([]*peer.Peer, 0, len(s.conns))
		for _, p := range s.conns {
			conns = append(conns, p)
		}
		s.mu.Unlock()
		for _, p := range conns {
			p.Terminate()
		}
	})
	s.wg.Wait()
}

// Complete reports whether every piece of the torrent has been downloaded
// and verified.
func (s *Swarm) Complete() bool {
	return s.store.Complete()
}

func (s *Swarm) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Errorf("swarm: accept: %s", err)
				return
			}
		}
		go s.handleInbound(conn)
	}
}

func (s *Swarm) handleInbound(conn net.Conn) {
	remote, err := peer.Handshake(conn, s.desc, s.pctx.PeerID, s.cfg.Peer.HandshakeTimeout)
	if err != nil {
		log.Infof("swarm: inbound handshake failed: %s", err)
		closers.Close(conn)
		return
	}
	host, portStr, err := netutil.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
		portStr = "0"
	}
	port, _ := strconv.Atoi(portStr)

	if s.blacklist.Blacklisted(host, port) {
		log.Infof("swarm: rejecting inbound connection from blacklisted %s:%d", host, port)
		closers.Close(conn)
		return
	}
	s.registerPeer(conn, remote, host, port)
}

func (s *Swarm) announceLoop() {
	defer s.wg.Done()
	interval := s.cfg.AnnounceInterval
	for {
		select {
		case <-s.done:
			return
		case <-s.clk.After(interval):
		}

		resp, err := s.announcer.Announce(s.desc.InfoHash, s.pctx.PeerID, s.store.Complete())
		if err != nil {
			log.Errorf("swarm: announce: %s", err)
			continue
		}
		if resp.Interval > 0 {
			interval = resp.Interval
		}
		s.dialNewPeers(resp.Peers)
	}
}

func (s *Swarm) dialNewPeers(infos []*core.PeerInfo) {
	s.mu.Lock()
	openSlots := s.cfg.MaxOpenConnections - len(s.conns)
	s.mu.Unlock()

	for _, info := range infos {
		if openSlots <= 0 {
			return
		}
		if info.PeerID == s.pctx.PeerID {
			continue
		}
		s.mu.Lock()
		_, connected := s.conns[info.PeerID]
		s.mu.Unlock()
		if connected {
			continue
		}
		if s.blacklist.Blacklisted(info.IP, info.Port) {
			continue
		}
		openSlots--
		go s.dial(info)
	}
}

func (s *Swarm) dial(info *core.PeerInfo) {
	addr := fmt.Sprintf("%s:%d", info.IP, info.Port)
	conn, err := net.DialTimeout("tcp", addr, s.cfg.DialTimeout)
	if err != nil {
		log.Infof("swarm: dial %s: %s", addr, err)
		return
	}
	remote, err := peer.Handshake(conn, s.desc, s.pctx.PeerID, s.cfg.Peer.HandshakeTimeout)
	if err != nil {
		log.Infof("swarm: outbound handshake with %s failed: %s", addr, err)
		closers.Close(conn)
		return
	}
	if remote != info.PeerID {
		log.Infof("swarm: peer at %s identified as %s, expected %s", addr, remote, info.PeerID)
		closers.Close(conn)
		return
	}
	s.registerPeer(conn, remote, info.IP, info.Port)
}

func (s *Swarm) registerPeer(conn net.Conn, remote core.PeerID, host string, port int) {
	s.mu.Lock()
	if _, ok := s.conns[remote]; ok {
		s.mu.Unlock()
		closers.Close(conn)
		return
	}
	if len(s.conns) >= s.cfg.MaxOpenConnections {
		s.mu.Unlock()
		log.Infof("swarm: at max open connections, dropping %s:%d", host, port)
		closers.Close(conn)
		return
	}
	p := peer.New(
		conn, remote, s.pctx.PeerID, host, port, s.desc, s.store, s.sess, s.net,
		s.completed, s.cfg.Peer, s.clk)
	s.conns[remote] = p
	s.mu.Unlock()

	s.sess.RegisterPeer(remote)
	s.dl.AddPeer(p)
	s.sd.AddPeer(p)
	s.cfg.Stats.Counter("peers_connected").Inc(1)

	if s.net != nil {
		s.net.Produce(networkevent.AddActiveConnEvent(s.desc.InfoHash, s.pctx.PeerID, remote))
	}

	go func() {
		p.Run()
		s.deregisterPeer(remote)
	}()
}

func (s *Swarm) deregisterPeer(id core.PeerID) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()

	s.dl.RemovePeer(id)
	s.sd.RemovePeer(id)
	s.cfg.Stats.Counter("peers_disconnected").Inc(1)

	if s.net != nil {
		s.net.Produce(networkevent.DropActiveConnEvent(s.desc.InfoHash, s.pctx.PeerID, id))
	}
}
