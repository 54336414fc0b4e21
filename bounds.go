// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice/meta"
)

var coordinateKeys = [3]string{KeyXCoordinates, KeyYCoordinates, KeyZCoordinates}

// BoundsToExtent returns the smallest index extent that covers the
// bounding box [x0, x1, y0, y1, z0, z1], using the monotonic coordinate
// arrays found in md. Coordinate index 0 corresponds to the lower
// corner of the whole extent when md has one. Boxes that lie entirely
// outside the coordinates fail with OutOfDomain.
func BoundsToExtent(bounds [6]float64, md meta.Metadata) (Extent, error) {
	var (
		ext    Extent
		origin Extent
	)
	if whole, err := md.Ints(KeyWholeExtent); err == nil {
		if origin, err = ExtentOf(whole); err != nil {
			return ext, err
		}
	}
	for axis, key := range coordinateKeys {
		lo, hi := bounds[2*axis], bounds[2*axis+1]
		if lo > hi {
			return ext, errors.E(InvalidRange, fmt.Sprintf("bounds %v are inverted on axis %d", bounds, axis))
		}
		c, err := md.Floats(key)
		if err != nil {
			return ext, errors.E(MissingMetadata, fmt.Sprintf("bounds to extent: %s", key), err)
		}
		if len(c) == 0 {
			return ext, errors.E(MissingMetadata, fmt.Sprintf("bounds to extent: %s is empty", key))
		}
		i0, i1, ok := coverRange(c, lo, hi)
		if !ok {
			return ext, errors.E(OutOfDomain,
				fmt.Sprintf("bounds [%g, %g] do not intersect %s [%g, %g]", lo, hi, key, c[0], c[len(c)-1]))
		}
		ext[2*axis] = origin[2*axis] + int64(i0)
		ext[2*axis+1] = origin[2*axis] + int64(i1)
	}
	return ext, nil
}

// coverRange returns the smallest index range [i0, i1] of the monotonic
// coordinates c that covers [lo, hi], clipped to the coordinates.
func coverRange(c []float64, lo, hi float64) (i0, i1 int, ok bool) {
	n := len(c)
	if c[n-1] < c[0] {
		// Descending coordinates: search the mirrored array.
		r := make([]float64, n)
		for i := range c {
			r[i] = c[n-1-i]
		}
		j0, j1, ok := coverRange(r, lo, hi)
		return n - 1 - j1, n - 1 - j0, ok
	}
	if hi < c[0] || lo > c[n-1] {
		return 0, 0, false
	}
	i0 = sort.Search(n, func(i int) bool { return c[i] > lo }) - 1
	if i0 < 0 {
		i0 = 0
	}
	i1 = sort.Search(n, func(i int) bool { return c[i] >= hi })
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, true
}
