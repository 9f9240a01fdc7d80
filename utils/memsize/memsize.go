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

// Package memsize formats byte and bit counts for log lines (transfer
// rates, piece sizes) into human-readable strings.
package memsize

import "fmt"

// Byte and bit unit constants, base 1024/1000 respectively, matching
// common torrent client conventions.
const (
	B  uint64 = 1
	KB        = 1024 * B
	MB        = 1024 * KB
	GB        = 1024 * MB
	TB        = 1024 * GB
)

const (
	bit  uint64 = 1
	Kbit        = 1000 * bit
	Mbit        = 1000 * Kbit
	Gbit        = 1000 * Mbit
	Tbit        = 1000 * Gbit
)

// Format renders bytes as a human-readable string using binary units.
func Format(bytes uint64) string {
	return render(bytes, "B", KB, MB, GB, TB)
}

// BitFormat renders bits as a human-readable string using decimal units.
func BitFormat(bits uint64) string {
	return render(bits, "bit", Kbit, Mbit, Gbit, Tbit)
}

func render(n uint64, unit string, k, m, g, t uint64) string {
	switch {
	case n == 0:
		return fmt.Sprintf("0%s", unit)
	case n >= t:
		return fmt.Sprintf("%.2fT%s", float64(n)/float64(t), unit)
	case n >= g:
		return fmt.Sprintf("%.2fG%s", float64(n)/float64(g), unit)
	case n >= m:
		return fmt.Sprintf("%.2fM%s", float64(n)/float64(m), unit)
	case n >= k:
		return fmt.Sprintf("%.2fK%s", float64(n)/float64(k), unit)
	default:
		return fmt.Sprintf("%.2f%s", float64(n), unit)
	}
}
