// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

import "fmt"

// A WorkUnit is one (spatial partition, temporal partition) pair of a
// space-time decomposition. Its Index is j*nSpatial + i, where i and j
// index the spatial and temporal partitions.
type WorkUnit struct {
	Index    int
	Spatial  Extent
	Temporal TemporalExtent
	// DeviceID is the device assigned to the unit, or NoDevice.
	DeviceID int
}

func (u WorkUnit) String() string {
	return fmt.Sprintf("unit %d extent=%v steps=%v device=%d", u.Index, u.Spatial, u.Temporal, u.DeviceID)
}

// A Plan describes a participant's share of a space-time
// decomposition. Every field except Units, Start and Count is
// identical on all participants of a run.
type Plan struct {
	// Rank and Size identify the participant and the number of
	// participants.
	Rank, Size int
	// Extent is the working spatial extent.
	Extent Extent
	// Steps is the inclusive range of time steps processed by the run.
	Steps TemporalExtent
	// Spatial and Temporal are the partitions whose Cartesian product
	// forms the work units.
	Spatial  []Extent
	Temporal []TemporalExtent
	// Start and Count describe this participant's block of work units.
	Start, Count int
	// Units are this participant's work units in ascending index order.
	Units []WorkUnit
}

// NumUnits returns the total number of work units over all
// participants.
func (p Plan) NumUnits() int {
	return len(p.Spatial) * len(p.Temporal)
}

// Unit returns the work unit with the provided global index, without
// a device assignment.
func (p Plan) Unit(index int) WorkUnit {
	n := len(p.Spatial)
	return WorkUnit{
		Index:    index,
		Spatial:  p.Spatial[index%n],
		Temporal: p.Temporal[index/n],
		DeviceID: NoDevice,
	}
}
