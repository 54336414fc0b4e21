// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// quartiles returns the lower empirical quartiles of ds, which must
// be sorted in ascending order and non-empty. Each quartile is an
// element of ds.
func quartiles(ds []time.Duration) (q1, q2, q3 time.Duration) {
	xs := make([]float64, len(ds))
	for i, d := range ds {
		xs[i] = float64(d)
	}
	q := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, xs, nil))
	}
	return q(0.25), q(0.5), q(0.75)
}
