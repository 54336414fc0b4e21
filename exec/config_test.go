// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"testing"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/device"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func profile(t *testing.T, params map[string]string) *config.Profile {
	t.Helper()
	p := config.New()
	for path, value := range params {
		assert.NoError(t, p.Set(path, value))
	}
	return p
}

func TestSessionConfig(t *testing.T) {
	p := profile(t, map[string]string{
		"gridslice.parallelism": "3",
		"gridslice.trace-path":  "/tmp/trace.json",
	})
	var sess *Session
	assert.NoError(t, p.Instance("gridslice", &sess))
	expect.EQ(t, sess.Parallelism(), 3)
	expect.EQ(t, sess.tracePath, "/tmp/trace.json")
	if sess.tracer == nil {
		t.Error("no tracer")
	}

	p = profile(t, map[string]string{"gridslice.parallelism": "-1"})
	if err := p.Instance("gridslice", &sess); err == nil {
		t.Error("expected error")
	}
}

func TestSpaceTimeConfigFlags(t *testing.T) {
	p := profile(t, map[string]string{
		"gridslice/spacetime.spatial-partitions":      "4",
		"gridslice/spacetime.temporal-partition-size": "2",
		"gridslice/spacetime.first-step":              "1",
		"gridslice/spacetime.last-step":               "7",
		"gridslice/spacetime.extent":                  "0, 4, 0,9,0,0",
		"gridslice/spacetime.arrays":                  "u, v",
		"gridslice/spacetime.devices":                 "0,1",
		"gridslice/spacetime.index-compatibility":     "true",
	})
	var ex *SpaceTimeExecutive
	assert.NoError(t, p.Instance("gridslice/spacetime", &ex))
	c := ex.Config()
	expect.EQ(t, c.NumSpatialPartitions, 4)
	expect.EQ(t, c.TemporalPartitionSize, 2)
	expect.EQ(t, c.NumTemporalPartitions, 0)
	expect.EQ(t, c.FirstStep, int64(1))
	expect.EQ(t, c.LastStep, int64(7))
	expect.EQ(t, *c.Extent, gridslice.Extent{0, 4, 0, 9, 0, 0})
	expect.EQ(t, c.Arrays, []string{"u", "v"})
	expect.EQ(t, c.Devices, device.Fixed{0, 1})
	if !c.IndexCompatibility {
		t.Error("index compatibility not enabled")
	}
	if c.Bounds != nil {
		t.Errorf("unexpected bounds %v", *c.Bounds)
	}
}

func TestSpaceTimeConfigIncompatible(t *testing.T) {
	p := profile(t, map[string]string{
		"gridslice/spacetime.temporal-partition-size": "2",
		"gridslice/spacetime.index-compatibility":     "true",
	})
	var ex *SpaceTimeExecutive
	assert.NoError(t, p.Instance("gridslice/spacetime", &ex))
	expect.EQ(t, ex.Config().TemporalPartitionSize, 2)
	md := pipeline(gridslice.Extent{0, 3, 0, 3, 0, 0}, 8)
	if err := ex.Initialize(context.Background(), nil, md); !errors.Is(gridslice.IncompatiblePartitioning, err) {
		t.Errorf("got %v, want IncompatiblePartitioning", err)
	}

	p = profile(t, map[string]string{"gridslice/spacetime.index-compatibility": "true"})
	assert.NoError(t, p.Instance("gridslice/spacetime", &ex))
	expect.EQ(t, ex.Config().TemporalPartitionSize, 1)
	assert.NoError(t, ex.Initialize(context.Background(), nil, md))
	expect.EQ(t, len(drain(ex)), 8)
}

func TestSpaceTimeConfigTimeStep(t *testing.T) {
	p := profile(t, map[string]string{
		"gridslice/spacetime.time-step": "5",
		"gridslice/spacetime.bounds":    "0.5,2,0,1,0,0",
		"gridslice/spacetime.devices":   "CUDA_VISIBLE_DEVICES",
	})
	var ex *SpaceTimeExecutive
	assert.NoError(t, p.Instance("gridslice/spacetime", &ex))
	c := ex.Config()
	expect.EQ(t, c.FirstStep, int64(5))
	expect.EQ(t, c.LastStep, int64(5))
	expect.EQ(t, *c.Bounds, [6]float64{0.5, 2, 0, 1, 0, 0})
	expect.EQ(t, c.Devices, device.Env("CUDA_VISIBLE_DEVICES"))
}

func TestSpaceTimeConfigErrors(t *testing.T) {
	for _, params := range []map[string]string{
		{"gridslice/spacetime.extent": "0,1,2"},
		{"gridslice/spacetime.extent": "0,1,x,3,0,0"},
		{"gridslice/spacetime.extent": "3,1,0,0,0,0"},
		{"gridslice/spacetime.bounds": "0,1"},
		{"gridslice/spacetime.bounds": "0,1,a,b,c,d"},
	} {
		var ex *SpaceTimeExecutive
		if err := profile(t, params).Instance("gridslice/spacetime", &ex); err == nil {
			t.Errorf("%v: expected error", params)
		}
	}
}
