// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Extent is an inclusive index box [i0, i1, j0, j1, k0, k1].
type Extent [6]int64

// ExtentOf returns the extent held in a 6-element slice.
func ExtentOf(v []int64) (Extent, error) {
	var e Extent
	if len(v) != 6 {
		return e, errors.E(InvalidRange, fmt.Sprintf("extent has %d values, want 6", len(v)))
	}
	copy(e[:], v)
	if !e.Valid() {
		return e, errors.E(InvalidRange, fmt.Sprintf("extent %v is inverted", e))
	}
	return e, nil
}

// Valid tells whether every axis of e has lower <= upper.
func (e Extent) Valid() bool {
	return e[0] <= e[1] && e[2] <= e[3] && e[4] <= e[5]
}

// Size returns the number of indices along axis (0, 1 or 2).
func (e Extent) Size(axis int) int64 {
	return e[2*axis+1] - e[2*axis] + 1
}

// Len returns the number of points in e.
func (e Extent) Len() int64 {
	return e.Size(0) * e.Size(1) * e.Size(2)
}

// Contains tells whether o lies entirely within e.
func (e Extent) Contains(o Extent) bool {
	for axis := 0; axis < 3; axis++ {
		if o[2*axis] < e[2*axis] || o[2*axis+1] > e[2*axis+1] {
			return false
		}
	}
	return true
}

// Overlaps tells whether e and o share at least one point.
func (e Extent) Overlaps(o Extent) bool {
	for axis := 0; axis < 3; axis++ {
		if o[2*axis] > e[2*axis+1] || o[2*axis+1] < e[2*axis] {
			return false
		}
	}
	return true
}

// Ints returns e as a slice, the form stored in metadata.
func (e Extent) Ints() []int64 {
	return append([]int64(nil), e[:]...)
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d %d %d %d %d %d]", e[0], e[1], e[2], e[3], e[4], e[5])
}

// TemporalExtent is an inclusive range of time step indices.
type TemporalExtent [2]int64

// Len returns the number of steps in t.
func (t TemporalExtent) Len() int64 {
	return t[1] - t[0] + 1
}

// Contains tells whether step s lies in t.
func (t TemporalExtent) Contains(s int64) bool {
	return t[0] <= s && s <= t[1]
}

func (t TemporalExtent) String() string {
	return fmt.Sprintf("[%d %d]", t[0], t[1])
}
