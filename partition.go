// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// split divides the inclusive range [lo, hi] into n contiguous pieces
// whose sizes differ by at most one; the first (hi-lo+1) mod n pieces
// carry the extra element. n must be in [1, hi-lo+1].
func split(lo, hi, n int64) [][2]int64 {
	var (
		total = hi - lo + 1
		base  = total / n
		big   = total % n
		out   = make([][2]int64, n)
	)
	for p := int64(0); p < n; p++ {
		size := base
		if p < big {
			size++
		}
		out[p] = [2]int64{lo, lo + size - 1}
		lo += size
	}
	return out
}

// PartitionSpatial splits ext into at most n contiguous, disjoint
// sub-extents whose union is ext. The split is made along the axis
// with the most indices (the lowest such axis on ties) and never
// produces more partitions than that axis has indices. Partition sizes
// along the split axis differ by at most one, the first partitions
// taking the remainder.
func PartitionSpatial(ext Extent, n int) ([]Extent, error) {
	if !ext.Valid() {
		return nil, errors.E(InvalidRange, fmt.Sprintf("partition: invalid extent %v", ext))
	}
	if n < 1 {
		return nil, errors.E(InvalidRange, fmt.Sprintf("partition: %d spatial partitions requested", n))
	}
	axis := 0
	for a := 1; a < 3; a++ {
		if ext.Size(a) > ext.Size(axis) {
			axis = a
		}
	}
	np := int64(n)
	if size := ext.Size(axis); np > size {
		np = size
	}
	ranges := split(ext[2*axis], ext[2*axis+1], np)
	parts := make([]Extent, len(ranges))
	for p, r := range ranges {
		parts[p] = ext
		parts[p][2*axis] = r[0]
		parts[p][2*axis+1] = r[1]
	}
	return parts, nil
}

// PartitionTemporal splits the inclusive step range r. If size >= 1 the
// partitions are size steps wide, except for the final one which holds
// the remaining (total mod size) steps when the range does not divide
// evenly. Otherwise the range is split into n near-equal partitions
// (at least 1, at most one per step), the first partitions taking the
// remainder.
func PartitionTemporal(r TemporalExtent, n, size int64) ([]TemporalExtent, error) {
	if r[1] < r[0] {
		return nil, errors.E(InvalidRange, fmt.Sprintf("partition: invalid temporal extent %v", r))
	}
	total := r.Len()
	if size >= 1 {
		parts := make([]TemporalExtent, 0, (total+size-1)/size)
		for t := r[0]; t <= r[1]; t += size {
			end := t + size - 1
			if end > r[1] {
				end = r[1]
			}
			parts = append(parts, TemporalExtent{t, end})
		}
		return parts, nil
	}
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	ranges := split(r[0], r[1], n)
	parts := make([]TemporalExtent, len(ranges))
	for p, s := range ranges {
		parts[p] = TemporalExtent(s)
	}
	return parts, nil
}

// Block returns the contiguous block [start, start+size) of n work
// units assigned to rank out of ranks participants. The first
// n mod ranks participants receive one extra unit, so block sizes
// differ by at most one and the blocks, in rank order, cover [0, n)
// exactly once.
func Block(n, ranks, rank int) (start, size int) {
	big := n % ranks
	size = n / ranks
	if rank < big {
		size++
		return size * rank, size
	}
	return size*rank + big, size
}
