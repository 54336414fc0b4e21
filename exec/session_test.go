// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/exec"
	"github.com/grailbio/gridslice/grid"
	"github.com/grailbio/gridslice/gridio"
	"github.com/grailbio/gridslice/meta"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func source() *grid.Source {
	return &grid.Source{
		WholeExtent: gridslice.Extent{0, 9, 0, 9, 0, 0},
		Bounds:      [6]float64{0, 9, 0, 9, 0, 0},
		NumSteps:    12,
		TimeBounds:  [2]float64{0, 11},
		Calendar:    "standard",
		Units:       "hours since 2020-06-01 00:00:00",
		Fields: []grid.Field{
			{Name: "u", Func: func(x, y, z, t float64) float64 { return x + 100*y + 10000*t }},
		},
		InfoFields: []grid.InfoField{
			{Name: "mean", Size: 1, Func: func(t float64, out []float64) { out[0] = t / 2 }},
		},
	}
}

func want(step int64) []float64 {
	vals := make([]float64, 0, 100)
	for j := 0; j < 10; j++ {
		for i := 0; i < 10; i++ {
			vals = append(vals, float64(i+100*j)+10000*float64(step))
		}
	}
	return vals
}

func writerConfig(dir string) gridio.Config {
	config := gridio.DefaultConfig()
	config.FileName = filepath.Join(dir, "run_%t%.gsl")
	config.StepsPerFile = 5
	return config
}

func checkFiles(t *testing.T, names []string) {
	t.Helper()
	ctx := context.Background()
	for i, steps := range []gridslice.TemporalExtent{{0, 4}, {5, 9}, {10, 11}} {
		f, err := gridio.Open(ctx, names[i])
		assert.NoError(t, err)
		expect.EQ(t, f.Header.Steps, steps)
		for s := steps[0]; s <= steps[1]; s++ {
			u, err := f.Point("u", s)
			assert.NoError(t, err)
			if diff := cmp.Diff(want(s), u); diff != "" {
				t.Errorf("%s step %d (-want +got):\n%s", names[i], s, diff)
			}
			mean, err := f.Info("mean", s)
			assert.NoError(t, err)
			expect.EQ(t, mean, []float64{float64(s) / 2})
		}
	}
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var (
		ctx     = context.Background()
		src     = source()
		comms   = comm.Local(2)
		writers = make([]*gridio.Writer, len(comms))
		sess    = make([]*exec.Session, len(comms))
	)
	err := traverse.Each(len(comms), func(i int) error {
		config := exec.DefaultSpaceTimeConfig()
		config.SetTemporalPartitionSize(2)
		writers[i] = gridio.NewWriter(writerConfig(dir))
		sess[i] = exec.Start(exec.Parallelism(4))
		return sess[i].Run(ctx, comms[i], src.Metadata(), exec.NewSpaceTime(config), src.Execute, writers[i])
	})
	assert.NoError(t, err)
	names := writers[0].Files()
	expect.EQ(t, names, []string{
		filepath.Join(dir, "run_2020-06-01-00Z.gsl"),
		filepath.Join(dir, "run_2020-06-01-05Z.gsl"),
		filepath.Join(dir, "run_2020-06-01-10Z.gsl"),
	})
	checkFiles(t, names)
	var requests int64
	for i := range sess {
		vals := sess[i].Stats().Snapshot()
		requests += vals["requests_done"]
		expect.EQ(t, vals["requests_failed"], int64(0))
		expect.EQ(t, vals["inflight"], int64(0))
		expect.EQ(t, writers[i].Stats().Snapshot()["files"], int64(3))
	}
	// 2 spatial partitions by 6 temporal partitions.
	expect.EQ(t, requests, int64(12))
}

func TestRunOrdered(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	src := source()
	config := writerConfig(dir)
	config.CompressionLevel = 5
	w := gridio.NewWriter(config)
	ex := exec.NewSpaceTime(exec.DefaultSpaceTimeConfig())
	sess := exec.Start(exec.Parallelism(1))
	assert.NoError(t, sess.Run(ctx, comm.Self, src.Metadata(), ex, src.Execute, w))
	expect.EQ(t, len(w.Diagnostics()), 0)
	checkFiles(t, w.Files())
	f, err := gridio.Open(ctx, w.Files()[0])
	assert.NoError(t, err)
	expect.EQ(t, f.Header.Compressed, true)
}

func TestRunUnordered(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	src := source()
	config := writerConfig(dir)
	config.CompressionLevel = 5
	w := gridio.NewWriter(config)
	config2 := exec.DefaultSpaceTimeConfig()
	config2.SetTemporalPartitionSize(1)
	sess := exec.Start(exec.Parallelism(3))
	assert.NoError(t, sess.Run(ctx, nil, src.Metadata(), exec.NewSpaceTime(config2), src.Execute, w))
	diags := w.Diagnostics()
	expect.EQ(t, len(diags), 1)
	if !errors.Is(gridslice.UnsupportedConfiguration, diags[0]) {
		t.Errorf("got %v, want UnsupportedConfiguration", diags[0])
	}
	checkFiles(t, w.Files())
}

func TestRunFailure(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var (
		ctx   = context.Background()
		src   = source()
		comms = comm.Local(2)
		errs  = make([]error, len(comms))
	)
	_ = traverse.Each(len(comms), func(i int) error {
		config := exec.DefaultSpaceTimeConfig()
		config.SetTemporalPartitionSize(1)
		alg := func(ctx context.Context, req meta.Metadata) (*grid.Mesh, error) {
			steps, err := grid.Steps(req, grid.DefaultRequestKey)
			if err != nil {
				return nil, err
			}
			if i == 1 && steps.Contains(8) {
				return nil, errors.E(errors.Timeout, "injected failure")
			}
			return src.Execute(ctx, req)
		}
		sess := exec.Start(exec.Parallelism(2))
		errs[i] = sess.Run(ctx, comms[i], src.Metadata(), exec.NewSpaceTime(config), alg, gridio.NewWriter(writerConfig(dir)))
		return nil
	})
	if !errors.Is(gridslice.CollectiveIO, errs[0]) {
		t.Errorf("rank 0: got %v, want CollectiveIO", errs[0])
	}
	if !errors.Is(errors.Timeout, errs[1]) {
		t.Errorf("rank 1: got %v, want the injected failure", errs[1])
	}
}

func TestRunNoSink(t *testing.T) {
	src := source()
	var n int64
	alg := func(ctx context.Context, req meta.Metadata) (*grid.Mesh, error) {
		atomic.AddInt64(&n, 1)
		return src.Execute(ctx, req)
	}
	config := exec.DefaultSpaceTimeConfig()
	config.EnableIndexCompatibility()
	sess := exec.Start()
	assert.NoError(t, sess.Run(context.Background(), nil, src.Metadata(), exec.NewSpaceTime(config), alg, nil))
	expect.EQ(t, n, int64(12))
	expect.EQ(t, sess.Stats().Snapshot()["requests"], int64(12))
}

// single is an executive without a plan.
type single struct{ done bool }

func (s *single) Initialize(context.Context, comm.Communicator, meta.Metadata) error { return nil }

func (s *single) NextRequest() meta.Metadata {
	var md meta.Metadata
	if !s.done {
		md.SetInt(grid.DefaultRequestKey, 0)
		s.done = true
	}
	return md
}

func TestRunErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	src := source()
	sess := exec.Start(exec.Parallelism(2))
	err := sess.Run(ctx, nil, src.Metadata(), new(single), src.Execute, gridio.NewWriter(writerConfig(dir)))
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	assert.NoError(t, sess.Run(ctx, nil, src.Metadata(), new(single), src.Execute, nil))

	md := src.Metadata()
	md.Delete(gridslice.KeyIndexRequest)
	err = sess.Run(ctx, nil, md, exec.NewSpaceTime(exec.DefaultSpaceTimeConfig()), src.Execute, nil)
	if !errors.Is(gridslice.MissingMetadata, err) {
		t.Errorf("got %v, want MissingMetadata", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = sess.Run(canceled, nil, src.Metadata(), exec.NewSpaceTime(exec.DefaultSpaceTimeConfig()), src.Execute, nil)
	if err == nil {
		t.Error("expected error")
	}
}
