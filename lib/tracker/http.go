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

// Package tracker implements an HTTP tracker announce client satisfying
// core.Announcer. Only the compact peer list response format (BEP 23) is
// supported; UDP tracker announce is out of scope.
package tracker

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"swarmcore/core"
	"swarmcore/utils/backoff"
	"swarmcore/utils/httputil"

	"github.com/jackpal/bencode-go"
)

const _compactPeerLen = 6

// response mirrors a bencoded HTTP tracker announce response.
type response struct {
	Failure  string `bencode:"failure reason"`
	Interval int    `bencode:"interval"`
	Peers    string `bencode:"peers"`
}

// Client announces to a fixed set of tracker URLs over HTTP, trying each
// in order until one succeeds.
type Client struct {
	urls []string
	port int
	cfg  Config
	bo   *backoff.Backoff
}

// New constructs a Client which announces against urls (tried in order on
// every call) from the local listening port.
func New(cfg Config, urls []string, port int) *Client {
	cfg = cfg.applyDefaults()
	return &Client{urls: urls, port: port, cfg: cfg, bo: backoff.New(cfg.Retry)}
}

// Announce implements core.Announcer. Each tracker URL is retried with
// backoff up to its configured retry timeout before falling through to the
// next one.
func (c *Client) Announce(infoHash core.InfoHash, self core.PeerID, complete bool) (*core.AnnounceResponse, error) {
	if len(c.urls) == 0 {
		return nil, fmt.Errorf("tracker: no announce URLs configured")
	}

	var lastErr error
	for _, base := range c.urls {
		resp, err := c.announceWithRetry(base, infoHash, self, complete)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("tracker: all trackers failed, last error: %s", lastErr)
}

func (c *Client) announceWithRetry(base string, infoHash core.InfoHash, self core.PeerID, complete bool) (*core.AnnounceResponse, error) {
	attempts := c.bo.Attempts()
	var lastErr error
	for attempts.WaitForNext() {
		resp, err := c.announceOne(base, infoHash, self, complete)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if err := attempts.Err(); err != nil {
		return nil, fmt.Errorf("%s (last attempt error: %s)", err, lastErr)
	}
	return nil, lastErr
}

func (c *Client) announceOne(base string, infoHash core.InfoHash, self core.PeerID, complete bool) (*core.AnnounceResponse, error) {
	u, err := c.buildURL(base, infoHash, self, complete)
	if err != nil {
		return nil, fmt.Errorf("build announce url: %s", err)
	}

	resp, err := httputil.Get(u,
		httputil.SendTimeout(c.cfg.Timeout),
		httputil.SendHeaders(map[string]string{"User-Agent": c.cfg.UserAgent}))
	if err != nil {
		return nil, fmt.Errorf("announce %s: %s", base, err)
	}
	defer resp.Body.Close()

	var tr response
	if err := bencode.Unmarshal(resp.Body, &tr); err != nil {
		return nil, fmt.Errorf("decode response from %s: %s", base, err)
	}
	if tr.Failure != "" {
		return nil, fmt.Errorf("tracker %s returned failure: %s", base, tr.Failure)
	}

	peers, err := decodeCompactPeers(tr.Peers)
	if err != nil {
		return nil, fmt.Errorf("decode peers from %s: %s", base, err)
	}

	interval := time.Duration(tr.Interval) * time.Second
	if interval <= 0 {
		interval = c.cfg.DefaultInterval
	}

	return &core.AnnounceResponse{Peers: peers, Interval: interval}, nil
}

func (c *Client) buildURL(base string, infoHash core.InfoHash, self core.PeerID, complete bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	event := "started"
	if complete {
		event = "completed"
	}
	q := url.Values{}
	q.Set("info_hash", string(infoHash.Bytes()))
	q.Set("peer_id", string(self.Bytes()))
	q.Set("port", fmt.Sprintf("%d", c.port))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", "0")
	q.Set("compact", "1")
	q.Set("event", event)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeCompactPeers parses a BEP 23 compact peer list: a concatenation of
// 6-byte entries, each a 4-byte big-endian IPv4 address followed by a
// 2-byte big-endian port.
func decodeCompactPeers(raw string) ([]*core.PeerInfo, error) {
	b := []byte(raw)
	if len(b)%_compactPeerLen != 0 {
		return nil, fmt.Errorf("compact peers field is not a multiple of %d bytes", _compactPeerLen)
	}
	n := len(b) / _compactPeerLen
	peers := make([]*core.PeerInfo, 0, n)
	for i := 0; i < n; i++ {
		e := b[i*_compactPeerLen : (i+1)*_compactPeerLen]
		ip := net.IPv4(e[0], e[1], e[2], e[3]).String()
		port := int(e[4])<<8 | int(e[5])
		id, err := core.HashedPeerID(fmt.Sprintf("%s:%d", ip, port))
		if err != nil {
			return nil, err
		}
		peers = append(peers, core.NewPeerInfo(id, ip, port, false, false))
	}
	return peers, nil
}
