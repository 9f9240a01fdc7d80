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
package storage

import (
	"errors"
	"io"
)

var errPieceNotComplete = errors.New("piece not complete")

// sectionReader implements PieceReader over a fixed byte range of an
// *os.File (or any io.ReaderAt), without holding its own file handle.
type sectionReader struct {
	*io.SectionReader
	length int
}

func newSectionReader(r io.ReaderAt, offset int64, length uint32) *sectionReader {
	return &sectionReader{
		SectionReader: io.NewSectionReader(r, offset, int64(length)),
		length:        int(length),
	}
}

// Length returns the number of bytes in the piece.
func (s *sectionReader) Length() int { return s.length }

// Close is a no-op: sectionReader does not own the underlying file.
func (s *sectionReader) Close() error { return nil }
