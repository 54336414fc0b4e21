// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"sort"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
)

func TestQuartiles(t *testing.T) {
	for _, c := range []struct {
		name       string
		ds         []int64
		q1, q2, q3 int64
	}{
		{"One", []int64{7}, 7, 7, 7},
		{"Two", []int64{0, 100}, 0, 0, 100},
		{"Three", []int64{0, 100, 200}, 0, 100, 200},
		{"Four", []int64{0, 100, 200, 300}, 0, 100, 200},
		{"FourSame", []int64{5, 5, 5, 5}, 5, 5, 5},
		{"Five", []int64{0, 100, 200, 300, 400}, 100, 200, 300},
		{"Eight", []int64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 4, 6},
	} {
		t.Run(c.name, func(t *testing.T) {
			ds := make([]time.Duration, len(c.ds))
			for i := range ds {
				ds[i] = time.Duration(c.ds[i])
			}
			q1, q2, q3 := quartiles(ds)
			if got, want := q1, time.Duration(c.q1); got != want {
				t.Errorf("q1: got %v, want %v", got, want)
			}
			if got, want := q2, time.Duration(c.q2); got != want {
				t.Errorf("q2: got %v, want %v", got, want)
			}
			if got, want := q3, time.Duration(c.q3); got != want {
				t.Errorf("q3: got %v, want %v", got, want)
			}
		})
	}
}

// TestQuartilesFuzz checks that quartiles of arbitrary durations are
// ordered, lie within the range of the input and are input elements.
func TestQuartilesFuzz(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 50)
	for i := 0; i < 1000; i++ {
		var us []uint32
		f.Fuzz(&us)
		ds := make([]time.Duration, len(us))
		present := make(map[time.Duration]bool)
		for i, u := range us {
			ds[i] = time.Duration(u)
			present[ds[i]] = true
		}
		sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
		q1, q2, q3 := quartiles(ds)
		if q1 < ds[0] || q2 < q1 || q3 < q2 || ds[len(ds)-1] < q3 {
			t.Fatalf("%v: quartiles %v %v %v out of order", ds, q1, q2, q3)
		}
		for _, q := range []time.Duration{q1, q2, q3} {
			if !present[q] {
				t.Fatalf("%v: quartile %v is not an element", ds, q)
			}
		}
	}
}
