// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/device"
	"github.com/grailbio/gridslice/meta"
)

// SpaceTimeConfig configures a SpaceTimeExecutive. The zero value is
// not the default configuration; use DefaultSpaceTimeConfig.
type SpaceTimeConfig struct {
	// NumSpatialPartitions is the number of partitions of the spatial
	// extent. Values below one use one partition per participant.
	NumSpatialPartitions int
	// NumTemporalPartitions is the number of partitions of the step
	// range. It is ignored when TemporalPartitionSize is at least one.
	NumTemporalPartitions int
	// TemporalPartitionSize is the number of steps per temporal
	// partition; the final partition holds the remaining steps.
	TemporalPartitionSize int
	// FirstStep and LastStep restrict the processed steps. A negative
	// LastStep selects the last available step.
	FirstStep, LastStep int64
	// Extent, if set, is the index extent to process. It must lie
	// within the whole extent.
	Extent *gridslice.Extent
	// Bounds, if set, is the bounding box to process. It takes
	// precedence over Extent.
	Bounds *[6]float64
	// Arrays are requested from upstream in every request.
	Arrays []string
	// IndexCompatibility makes the executive request one step at a
	// time using a single index, as the index executive would.
	IndexCompatibility bool
	// Devices lists the accelerator devices requests are assigned
	// to. With no devices requests execute on the host.
	Devices device.Lister
}

// DefaultSpaceTimeConfig returns the default configuration: one
// spatial partition per participant, the whole step range as a single
// temporal partition, no devices.
func DefaultSpaceTimeConfig() SpaceTimeConfig {
	return SpaceTimeConfig{
		NumTemporalPartitions: 1,
		LastStep:              -1,
	}
}

// SetTemporalPartitionSize sets the temporal partition size. Sizes of
// one or more take precedence over the number of temporal partitions.
func (c *SpaceTimeConfig) SetTemporalPartitionSize(n int) {
	if n >= 1 {
		c.NumTemporalPartitions = 0
	}
	c.TemporalPartitionSize = n
}

// SetTimeStep restricts processing to the single step s.
func (c *SpaceTimeConfig) SetTimeStep(s int64) {
	if s < 0 {
		c.FirstStep = 0
	} else {
		c.FirstStep = s
	}
	c.LastStep = s
}

// EnableIndexCompatibility configures one request per time step,
// each naming a single index.
func (c *SpaceTimeConfig) EnableIndexCompatibility() {
	c.NumTemporalPartitions = 0
	c.TemporalPartitionSize = 1
	c.IndexCompatibility = true
}

// SpaceTimeExecutive partitions the working spatial extent and the
// requested step range, and assigns the Cartesian product of the two
// partitionings to participants in contiguous blocks. Each
// participant's block is served as a backlog of requests.
//
// SpaceTimeExecutive uses the following metadata keys:
//
//	whole_extent            the spatial index extent to partition
//	index_initializer_key   names the key holding the number of indices
//	index_request_key       names the key used to request indices
//
// Requests carry "arrays", "extent", "device_id", "index_request_key"
// and the key named by index_request_key, set to the inclusive step
// range of the request (or to the single step, in index
// compatibility mode).
type SpaceTimeExecutive struct {
	config  SpaceTimeConfig
	plan    gridslice.Plan
	backlog []meta.Metadata
	reqKey  string
}

// NewSpaceTime returns a new space-time executive with the provided
// configuration.
func NewSpaceTime(config SpaceTimeConfig) *SpaceTimeExecutive {
	return &SpaceTimeExecutive{config: config}
}

func (e *SpaceTimeExecutive) fail(kind errors.Kind, msg string, err error) error {
	log.Error.Printf("exec.SpaceTimeExecutive: %s", msg)
	if err == nil {
		return errors.E(kind, msg)
	}
	return errors.E(kind, msg, err)
}

// Config returns the executive's configuration. Executives hold
// per-participant state; runs with several participants in one process
// create one executive per participant from a shared configuration.
func (e *SpaceTimeExecutive) Config() SpaceTimeConfig {
	return e.config
}

// Initialize implements Executive. It builds this participant's
// backlog. Initialize is deterministic: identical inputs produce an
// identical backlog, on every participant.
func (e *SpaceTimeExecutive) Initialize(ctx context.Context, c comm.Communicator, md meta.Metadata) error {
	e.backlog = nil
	e.plan = gridslice.Plan{}
	rank, size := comm.RankSize(c)

	v, err := md.Ints(gridslice.KeyWholeExtent)
	if err != nil {
		return e.fail(errors.Recover(err).Kind, "failed to get whole_extent", err)
	}
	whole, err := gridslice.ExtentOf(v)
	if err != nil {
		return e.fail(gridslice.InvalidRange, fmt.Sprintf("invalid whole_extent %v", v), err)
	}

	// Determine the extent to process, taking into account user
	// provided subsets.
	var working gridslice.Extent
	switch {
	case e.config.Bounds != nil:
		if working, err = gridslice.BoundsToExtent(*e.config.Bounds, md); err != nil {
			return e.fail(errors.Recover(err).Kind, fmt.Sprintf("failed to convert the bounds %v to a working extent", *e.config.Bounds), err)
		}
	case e.config.Extent != nil:
		working = *e.config.Extent
		if !working.Valid() || !whole.Contains(working) {
			return e.fail(gridslice.OutOfRange, fmt.Sprintf("the extent %v is not covered by the available extent %v", working, whole), nil)
		}
	default:
		working = whole
	}

	nSpatial := e.config.NumSpatialPartitions
	if nSpatial < 1 {
		nSpatial = size
	} else if nSpatial < size {
		log.Printf("exec.SpaceTimeExecutive: %d spatial partitions for %d ranks; some ranks may be idle", nSpatial, size)
	}
	spatial, err := gridslice.PartitionSpatial(working, nSpatial)
	if err != nil {
		return e.fail(gridslice.InvalidRange, "failed to partition the spatial domain", err)
	}

	// Pipeline control keys.
	initKey, err := md.String(gridslice.KeyIndexInitializer)
	if err != nil {
		return e.fail(gridslice.MissingMetadata, "no index initializer key has been specified", err)
	}
	reqKey, err := md.String(gridslice.KeyIndexRequest)
	if err != nil {
		return e.fail(gridslice.MissingMetadata, "no index request key has been specified", err)
	}
	nIndices, err := md.Int(initKey)
	if err != nil {
		return e.fail(gridslice.MissingMetadata, fmt.Sprintf("metadata is missing the initializer key %q", initKey), err)
	}
	if nIndices < 1 {
		return e.fail(gridslice.InvalidRange, fmt.Sprintf("%s=%d: no indices to process", initKey, nIndices), nil)
	}

	last := e.config.LastStep
	if last < 0 || last > nIndices-1 {
		last = nIndices - 1
	}
	first := e.config.FirstStep
	if first < 0 || first > last {
		first = 0
	}
	steps := gridslice.TemporalExtent{first, last}
	temporal, err := gridslice.PartitionTemporal(steps,
		int64(e.config.NumTemporalPartitions), int64(e.config.TemporalPartitionSize))
	if err != nil {
		return e.fail(gridslice.InvalidRange, "failed to partition the temporal domain", err)
	}
	if e.config.IndexCompatibility && int64(len(temporal)) != steps.Len() {
		return e.fail(gridslice.IncompatiblePartitioning,
			fmt.Sprintf("index compatibility requires one step per request, have %d partitions of %d steps", len(temporal), steps.Len()), nil)
	}

	// The total work is the Cartesian product of the spatial and
	// temporal partitions; each rank takes a contiguous block of it.
	e.plan = gridslice.Plan{
		Rank:     rank,
		Size:     size,
		Extent:   working,
		Steps:    steps,
		Spatial:  spatial,
		Temporal: temporal,
	}
	e.plan.Start, e.plan.Count = gridslice.Block(e.plan.NumUnits(), size, rank)

	var devices []int
	if e.config.Devices != nil {
		if devices, err = e.config.Devices.Devices(ctx, c); err != nil {
			log.Printf("exec.SpaceTimeExecutive: failed to determine the local devices, falling back to the default device: %v", err)
			devices = []int{0}
		}
	}

	var base meta.Metadata
	base.SetStrings(gridslice.KeyArrays, e.config.Arrays...)
	e.reqKey = reqKey
	e.plan.Units = make([]gridslice.WorkUnit, e.plan.Count)
	e.backlog = make([]meta.Metadata, 0, e.plan.Count)
	for q := range e.plan.Units {
		unit := e.plan.Unit(e.plan.Start + q)
		if len(devices) > 0 {
			unit.DeviceID = devices[q%len(devices)]
		}
		e.plan.Units[q] = unit

		req := base.Clone()
		req.SetInts(gridslice.KeyExtent, unit.Spatial.Ints()...)
		req.SetString(gridslice.KeyIndexRequest, reqKey)
		if e.config.IndexCompatibility {
			req.SetInt(reqKey, unit.Temporal[0])
		} else {
			req.SetInts(reqKey, unit.Temporal[0], unit.Temporal[1])
		}
		req.SetInt(gridslice.KeyDeviceID, int64(unit.DeviceID))
		e.backlog = append(e.backlog, req)
	}
	log.Debug.Printf("exec.SpaceTimeExecutive: rank %d/%d %s=%d %s first=%d last=%d spatial=%d temporal=%d block_start=%d block_size=%d",
		rank, size, initKey, nIndices, reqKey, first, last, len(spatial), len(temporal), e.plan.Start, e.plan.Count)
	return nil
}

// NextRequest implements Executive. Requests are served from the back
// of the backlog; each is handed out exactly once.
func (e *SpaceTimeExecutive) NextRequest() meta.Metadata {
	n := len(e.backlog)
	if n == 0 {
		return meta.Metadata{}
	}
	req := e.backlog[n-1]
	e.backlog[n-1] = meta.Metadata{}
	e.backlog = e.backlog[:n-1]
	log.Debug.Printf("exec.SpaceTimeExecutive: rank %d request %s", e.plan.Rank, req.Format())
	return req
}

// Len returns the number of requests left in the backlog.
func (e *SpaceTimeExecutive) Len() int {
	return len(e.backlog)
}

// Plan implements Planner.
func (e *SpaceTimeExecutive) Plan() gridslice.Plan {
	return e.plan
}
