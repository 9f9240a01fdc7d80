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

// Command swarmcore downloads (and, once complete, seeds) a single torrent
// described by a .torrent file, using an HTTP tracker to discover peers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"swarmcore/core"
	"swarmcore/lib/metainfo"
	"swarmcore/lib/torrent/networkevent"
	"swarmcore/lib/torrent/storage"
	"swarmcore/lib/torrent/swarm"
	"swarmcore/lib/tracker"
	"swarmcore/metrics"
	"swarmcore/utils/configutil"
	"swarmcore/utils/log"
	"swarmcore/utils/memsize"
	"swarmcore/utils/shutdown"

	"github.com/andres-erbsen/clock"
)

func main() {
	torrentFile := flag.String("torrent", "", "path to the .torrent file to download")
	outputPath := flag.String("output", "", "path to write the downloaded file to")
	peerIP := flag.String("peer_ip", "", "ip which this peer will announce itself as")
	peerPort := flag.Int("peer_port", 6881, "port which this peer will listen on and announce itself as")
	configFile := flag.String("config", "", "YAML configuration file")
	zone := flag.String("zone", "", "zone/datacenter name")
	cluster := flag.String("cluster", "", "cluster name")

	flag.Parse()

	if *torrentFile == "" {
		log.Fatal("must specify -torrent")
	}
	if *outputPath == "" {
		log.Fatal("must specify -output")
	}
	if *peerIP == "" {
		log.Fatal("must specify -peer_ip")
	}

	var config Config
	if *configFile != "" {
		if err := configutil.Load(*configFile, &config); err != nil {
			log.Fatalf("failed to load config: %s", err)
		}
	}
	if config.PeerIDFactory == "" {
		config.PeerIDFactory = core.AzureusPeerIDFactory
	}

	zlog := log.ConfigureLogger(config.ZapLogging)
	defer zlog.Sync()

	pctx, err := core.NewPeerContext(
		config.PeerIDFactory, *zone, *cluster, *peerIP, *peerPort, false)
	if err != nil {
		log.Fatalf("failed to create peer context: %s", err)
	}

	stats, statsCloser, err := metrics.New(config.Metrics, pctx.PeerID.String())
	if err != nil {
		log.Fatalf("failed to init metrics: %s", err)
	}

	f, err := os.Open(*torrentFile)
	if err != nil {
		log.Fatalf("failed to open torrent file: %s", err)
	}
	mi, err := metainfo.Parse(f, *outputPath)
	f.Close()
	if err != nil {
		log.Fatalf("failed to parse torrent file: %s", err)
	}
	log.Infof("Loaded torrent %q (info hash %s), %s across %d pieces",
		mi.Name, mi.Descriptor.InfoHash, memsize.Format(mi.Descriptor.TotalLength), mi.Descriptor.NumPieces())

	store, err := storage.NewLocalTorrent(mi.Descriptor)
	if err != nil {
		log.Fatalf("failed to create local torrent storage: %s", err)
	}

	trackerClient := tracker.New(config.Tracker, mi.AnnounceURLs, *peerPort)

	netevents, err := networkevent.NewProducer(config.NetworkEvent)
	if err != nil {
		log.Fatalf("failed to create network event producer: %s", err)
	}

	config.Swarm.Stats = stats

	sw := swarm.New(config.Swarm, pctx, mi.Descriptor, store, trackerClient, netevents, clock.New())
	if err := sw.Start(); err != nil {
		log.Fatalf("failed to start swarm: %s", err)
	}
	log.Infof("Swarm started, listening on port %d", *peerPort)

	// Cleanups run last-in first-out: the swarm stops, then metrics close.
	sh := shutdown.New(context.Background())
	sh.AddCleanup(func() error {
		return statsCloser.Close()
	})
	sh.AddCleanup(func() error {
		sw.Stop()
		return nil
	})

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	log.Info("Shutting down...")
	sh.Shutdown()
}
