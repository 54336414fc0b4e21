// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/device"
)

func init() {
	config.Register("gridslice", func(inst *config.Constructor) {
		var (
			p         int
			tracePath string
		)
		inst.IntVar(&p, "parallelism", 0, "number of worker threads per participant; GOMAXPROCS when zero")
		inst.StringVar(&tracePath, "trace-path", "", "path to which a trace of the session's runs is written on shutdown")
		inst.Doc = "gridslice configures the gridslice runtime"
		inst.New = func() (interface{}, error) {
			if p < 0 {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("exec: parallelism %d", p))
			}
			var options []Option
			if p > 0 {
				options = append(options, Parallelism(p))
			}
			if tracePath != "" {
				options = append(options, TracePath(tracePath))
			}
			return Start(options...), nil
		}
	})
	config.Register("gridslice/spacetime", func(inst *config.Constructor) {
		c := DefaultSpaceTimeConfig()
		var (
			size, step      int
			first, last     int
			extent, bounds  string
			arrays, devices string
			compat          bool
		)
		inst.IntVar(&c.NumSpatialPartitions, "spatial-partitions", 0, "number of spatial partitions; one per participant when zero")
		inst.IntVar(&c.NumTemporalPartitions, "temporal-partitions", c.NumTemporalPartitions, "number of temporal partitions")
		inst.IntVar(&size, "temporal-partition-size", 0, "number of time steps per temporal partition; overrides temporal-partitions when positive")
		inst.IntVar(&first, "first-step", 0, "first time step to process")
		inst.IntVar(&last, "last-step", -1, "last time step to process; the last available step when negative")
		inst.IntVar(&step, "time-step", -1, "process only this time step when non-negative")
		inst.StringVar(&extent, "extent", "", "comma separated index extent i0,i1,j0,j1,k0,k1 to process")
		inst.StringVar(&bounds, "bounds", "", "comma separated bounding box x0,x1,y0,y1,z0,z1 to process; takes precedence over extent")
		inst.StringVar(&arrays, "arrays", "", "comma separated arrays to request")
		inst.StringVar(&devices, "devices", "", "device list: an environment variable such as CUDA_VISIBLE_DEVICES, or a comma separated list of ordinals")
		inst.BoolVar(&compat, "index-compatibility", false, "request one time step at a time using a single index")
		inst.Doc = "gridslice/spacetime configures the space-time executive"
		inst.New = func() (interface{}, error) {
			c := c
			c.FirstStep, c.LastStep = int64(first), int64(last)
			if compat {
				c.EnableIndexCompatibility()
			}
			if size > 0 {
				c.SetTemporalPartitionSize(size)
			}
			if step >= 0 {
				c.SetTimeStep(int64(step))
			}
			if extent != "" {
				v, err := parseInts(extent)
				if err != nil {
					return nil, err
				}
				ext, err := gridslice.ExtentOf(v)
				if err != nil {
					return nil, err
				}
				c.Extent = &ext
			}
			if bounds != "" {
				v, err := parseFloats(bounds)
				if err != nil {
					return nil, err
				}
				if len(v) != 6 {
					return nil, errors.E(errors.Invalid, fmt.Sprintf("exec: bounds %q: want 6 values", bounds))
				}
				var b [6]float64
				copy(b[:], v)
				c.Bounds = &b
			}
			for _, name := range strings.Split(arrays, ",") {
				if name = strings.TrimSpace(name); name != "" {
					c.Arrays = append(c.Arrays, name)
				}
			}
			if devices != "" {
				if ids, err := device.Parse(devices); err == nil {
					c.Devices = device.Fixed(ids)
				} else {
					c.Devices = device.Env(devices)
				}
			}
			return NewSpaceTime(c), nil
		}
	})
}

func parseInts(s string) ([]int64, error) {
	var v []int64
	for _, field := range strings.Split(s, ",") {
		x, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exec: invalid integer %q", field), err)
		}
		v = append(v, x)
	}
	return v, nil
}

func parseFloats(s string) ([]float64, error) {
	var v []float64
	for _, field := range strings.Split(s, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("exec: invalid number %q", field), err)
		}
		v = append(v, x)
	}
	return v, nil
}
