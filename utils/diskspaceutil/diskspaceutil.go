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

// Package diskspaceutil reports the capacity and utilization of the
// filesystem backing the current working directory. Storage uses it to log
// a warning before pre-allocating a torrent; it does not refuse a download.
package diskspaceutil

import "syscall"

const _outputDir = "."

// FileSystemSize returns the total size in bytes of the filesystem
// backing the current working directory.
func FileSystemSize() (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(_outputDir, &stat); err != nil {
		return 0, err
	}
	return stat.Blocks * uint64(stat.Bsize), nil
}

// FileSystemUtil returns the percentage (0-100) of the filesystem backing
// the current working directory that is currently in use.
func FileSystemUtil() (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(_outputDir, &stat); err != nil {
		return 0, err
	}
	if stat.Blocks == 0 {
		return 0, nil
	}
	used := stat.Blocks - stat.Bfree
	return float64(used) / float64(stat.Blocks) * 100, nil
}
