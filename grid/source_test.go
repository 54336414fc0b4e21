// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grid

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/meta"
)

func testSource() *Source {
	return &Source{
		WholeExtent: gridslice.Extent{0, 4, 0, 2, 0, 0},
		Bounds:      [6]float64{0, 4, 0, 2, 0, 0},
		NumSteps:    4,
		TimeBounds:  [2]float64{0, 3},
		Calendar:    "standard",
		Units:       "days since 2022-01-01 00:00:00",
		Fields: []Field{
			{"U", func(x, y, z, t float64) float64 { return x + 10*y + 100*t }},
			{"V", func(x, y, z, t float64) float64 { return -x }},
		},
		InfoFields: []InfoField{
			{"stats", 2, func(t float64, out []float64) { out[0], out[1] = t, 2*t }},
		},
	}
}

func TestSourceMetadata(t *testing.T) {
	md := testSource().Metadata()
	key, err := md.String(gridslice.KeyIndexInitializer)
	if err != nil {
		t.Fatal(err)
	}
	n, err := md.Int(key)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := n, int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	x, _ := md.Floats(gridslice.KeyXCoordinates)
	if diff := cmp.Diff([]float64{0, 1, 2, 3, 4}, x); diff != "" {
		t.Errorf("x (-want +got):\n%s", diff)
	}
	z, _ := md.Floats(gridslice.KeyZCoordinates)
	if diff := cmp.Diff([]float64{0}, z); diff != "" {
		t.Errorf("z (-want +got):\n%s", diff)
	}
	sizes, _ := md.Ints(gridslice.KeyInformationArraySizes)
	if diff := cmp.Diff([]int64{2}, sizes); diff != "" {
		t.Errorf("sizes (-want +got):\n%s", diff)
	}
}

func TestSourceExecute(t *testing.T) {
	src := testSource()
	var req meta.Metadata
	req.SetInts(gridslice.KeyExtent, 1, 2, 1, 2, 0, 0)
	req.SetInts(DefaultRequestKey, 2, 3)
	req.SetStrings(gridslice.KeyArrays, "U")
	req.SetInt(gridslice.KeyDeviceID, 1)
	m, err := src.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.DeviceID, 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, ok := m.Point["V"]; ok {
		t.Error("unrequested array V was produced")
	}
	u, err := m.PointStep("U", 3)
	if err != nil {
		t.Fatal(err)
	}
	// i fastest: (1,1) (2,1) (1,2) (2,2) at t=3.
	if diff := cmp.Diff([]float64{311, 312, 321, 322}, u); diff != "" {
		t.Errorf("U (-want +got):\n%s", diff)
	}
	stats, err := m.InfoStep("stats", 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{2, 4}, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if _, err := m.PointStep("U", 1); !errors.Is(gridslice.OutOfRange, err) {
		t.Errorf("got %v, want OutOfRange", err)
	}
}

func TestSourceSingleIndex(t *testing.T) {
	var req meta.Metadata
	req.SetInt(DefaultRequestKey, 1)
	m, err := testSource().Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Steps, (gridslice.TemporalExtent{1, 1}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := m.Extent, testSource().WholeExtent; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := m.DeviceID, gridslice.NoDevice; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSourceErrors(t *testing.T) {
	src := testSource()
	var req meta.Metadata
	if _, err := src.Execute(context.Background(), req); !errors.Is(gridslice.MissingMetadata, err) {
		t.Errorf("got %v, want MissingMetadata", err)
	}
	req.SetInts(DefaultRequestKey, 3, 4)
	if _, err := src.Execute(context.Background(), req); !errors.Is(gridslice.OutOfRange, err) {
		t.Errorf("got %v, want OutOfRange", err)
	}
	req.SetInt(DefaultRequestKey, 0)
	req.SetInts(gridslice.KeyExtent, 0, 9, 0, 2, 0, 0)
	if _, err := src.Execute(context.Background(), req); !errors.Is(gridslice.OutOfRange, err) {
		t.Errorf("got %v, want OutOfRange", err)
	}
}
