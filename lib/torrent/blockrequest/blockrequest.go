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

// Package blockrequest defines the handle threaded between the downloader
// and peer actors for a single in-flight block request.
package blockrequest

import (
	"time"

	"swarmcore/core"
)

// Request tracks one outstanding or resolved block request. It is created
// by the downloader, handed to a peer actor to issue on the wire, and
// returned (successful or not) on the shared completed-requests queue.
type Request struct {
	Piece  int
	Begin  uint32
	Length uint32

	// Data is populated only when Successful is true.
	Data []byte

	Successful  bool
	CompletedBy core.PeerID

	ExpiresAt time.Time
}

// New constructs a pending Request for the given block, expiring at now+ttl.
func New(piece int, begin, length uint32, now time.Time, ttl time.Duration) *Request {
	return &Request{
		Piece:     piece,
		Begin:     begin,
		Length:    length,
		ExpiresAt: now.Add(ttl),
	}
}

// Matches reports whether a received Piece reply of the given shape
// satisfies this request.
func (r *Request) Matches(piece int, begin uint32, length int) bool {
	return r.Piece == piece && r.Begin == begin && int(r.Length) == length
}

// Expired reports whether this request has passed its expiry as of now.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
