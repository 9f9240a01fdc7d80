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
	"github.com/andres-erbsen/clock"
)

const rateWindowSeconds = 20

// rollingRate tracks bytes transferred over a trailing rateWindowSeconds
// window, bucketed by wall-clock second.
type rollingRate struct {
	clk     clock.Clock
	buckets [rateWindowSeconds]int64
	second  [rateWindowSeconds]int64
	epoch   int64
}

func newRollingRate(clk clock.Clock) *rollingRate {
	return &rollingRate{clk: clk, epoch: clk.Now().Unix()}
}

func (r *rollingRate) record(n int64) {
	now := r.clk.Now().Unix()
	i := now % rateWindowSeconds
	if r.second[i] != now {
		r.second[i] = now
		r.buckets[i] = 0
	}
	r.buckets[i] += n
}

// bytesPerSecond returns the average throughput over the trailing window,
// discarding buckets whose timestamp has aged out.
func (r *rollingRate) bytesPerSecond() float64 {
	now := r.clk.Now().Unix()
	var total int64
	for i, ts := range r.second {
		if now-ts < rateWindowSeconds {
			total += r.buckets[i]
		}
	}
	return float64(total) / float64(rateWindowSeconds)
}
