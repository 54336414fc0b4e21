// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridio

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
)

// A gridio file is laid out as follows:
//
//	magic        8 bytes, "GRIDSLC1"
//	header size  uint64, little endian
//	header       gob encoded Header, zero padded to header size
//	data
//
// Data holds one record per time step. A record holds each point array
// in header order (Extent.Len() float64 values, i varying fastest),
// followed by each information array. In files with an unlimited time
// dimension every record is preceded by its int64 step index. Data of
// compressed files is a single zstd stream. Numbers are little endian.
const magic = "GRIDSLC1"

// Version is the version of the file layout written by this package.
const Version = 1

const preambleSize = int64(len(magic) + 8)

// InfoArray describes an information array: a fixed number of values
// per time step, not associated with mesh points.
type InfoArray struct {
	Name string
	Size int
}

// Header describes the contents of a file.
type Header struct {
	Version int
	// RunID identifies the run that produced the file.
	RunID string
	// Extent is the spatial index extent covered by the file; Steps
	// the inclusive step range.
	Extent gridslice.Extent
	Steps  gridslice.TemporalExtent
	// Time holds the time coordinate of each step, if known.
	Time            []float64
	Calendar, Units string
	// X, Y and Z are the coordinates of Extent, if known.
	X, Y, Z []float64

	PointArrays []string
	InfoArrays  []InfoArray

	Compressed bool
	Unlimited  bool
}

// NumSteps returns the number of steps described by the header.
func (h *Header) NumSteps() int64 {
	return h.Steps.Len()
}

// RecordSize returns the size in bytes of a step record, excluding
// the step index of unlimited files.
func (h *Header) RecordSize() int64 {
	n := h.Extent.Len() * int64(len(h.PointArrays))
	for _, a := range h.InfoArrays {
		n += int64(a.Size)
	}
	return 8 * n
}

// PointOffset returns the offset within a step record of point array
// a.
func (h *Header) PointOffset(a int) int64 {
	return 8 * int64(a) * h.Extent.Len()
}

// InfoOffset returns the offset within a step record of information
// array a.
func (h *Header) InfoOffset(a int) int64 {
	off := 8 * h.Extent.Len() * int64(len(h.PointArrays))
	for _, info := range h.InfoArrays[:a] {
		off += 8 * int64(info.Size)
	}
	return off
}

func (h *Header) pointIndex(name string) int {
	for i, n := range h.PointArrays {
		if n == name {
			return i
		}
	}
	return -1
}

func (h *Header) infoIndex(name string) int {
	for i, a := range h.InfoArrays {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func encodeHeader(h Header) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(h); err != nil {
		return nil, errors.E(errors.Invalid, "gridio: encode header", err)
	}
	return b.Bytes(), nil
}

// headerSize rounds n up so that data starts on an 8 byte boundary.
func headerSize(n int64) int64 {
	return (n + 7) &^ 7
}

// dataOffset returns the file offset of the data of a file whose
// header occupies size bytes.
func dataOffset(size int64) int64 {
	return preambleSize + size
}

// preamble returns the magic, header size and header, padded to
// size bytes.
func preamble(enc []byte, size int64) []byte {
	b := make([]byte, preambleSize+size)
	copy(b, magic)
	binary.LittleEndian.PutUint64(b[len(magic):], uint64(size))
	copy(b[preambleSize:], enc)
	return b
}

// readPreamble reads and decodes the header at the beginning of r,
// returning it along with the offset at which data begins.
func readPreamble(r io.Reader) (Header, int64, error) {
	var h Header
	b := make([]byte, preambleSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return h, 0, errors.E(errors.Integrity, "gridio: short file", err)
	}
	if string(b[:len(magic)]) != magic {
		return h, 0, errors.E(errors.Integrity, fmt.Sprintf("gridio: bad magic %q", b[:len(magic)]))
	}
	size := int64(binary.LittleEndian.Uint64(b[len(magic):]))
	hb := make([]byte, size)
	if _, err := io.ReadFull(r, hb); err != nil {
		return h, 0, errors.E(errors.Integrity, "gridio: short header", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(hb)).Decode(&h); err != nil {
		return h, 0, errors.E(errors.Integrity, "gridio: decode header", err)
	}
	if h.Version != Version {
		return h, 0, errors.E(errors.NotSupported, fmt.Sprintf("gridio: unsupported version %d", h.Version))
	}
	return h, dataOffset(size), nil
}

func putFloats(b []byte, vs []float64) {
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
}

func getFloats(b []byte) []float64 {
	vs := make([]float64, len(b)/8)
	for i := range vs {
		vs[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return vs
}
