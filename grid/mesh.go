// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package grid provides the Cartesian mesh dataset produced by
// gridslice pipelines and an analytic source that generates meshes on
// request.
package grid

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
)

// A Mesh holds point-centered and information arrays over a spatial
// extent for an inclusive range of time steps. Point arrays hold
// Steps.Len() blocks of Extent.Len() values, i varying fastest within a
// block; information arrays hold Steps.Len() equally sized blocks.
type Mesh struct {
	Extent gridslice.Extent
	Steps  gridslice.TemporalExtent
	// X, Y and Z are the coordinates of Extent; Time holds one value
	// per step.
	X, Y, Z []float64
	Time    []float64

	Point map[string][]float64
	Info  map[string][]float64

	// DeviceID is the device the mesh was produced on.
	DeviceID int
}

// NewMesh returns an empty mesh over ext and steps.
func NewMesh(ext gridslice.Extent, steps gridslice.TemporalExtent) *Mesh {
	return &Mesh{
		Extent:   ext,
		Steps:    steps,
		Point:    make(map[string][]float64),
		Info:     make(map[string][]float64),
		DeviceID: gridslice.NoDevice,
	}
}

// NumSteps returns the number of time steps held by m.
func (m *Mesh) NumSteps() int {
	return int(m.Steps.Len())
}

func (m *Mesh) stepIndex(step int64) (int, error) {
	if !m.Steps.Contains(step) {
		return 0, errors.E(gridslice.OutOfRange, fmt.Sprintf("mesh: step %d not in %v", step, m.Steps))
	}
	return int(step - m.Steps[0]), nil
}

// PointStep returns the values of point array name at the provided
// step. The returned slice aliases the mesh.
func (m *Mesh) PointStep(name string, step int64) ([]float64, error) {
	s, err := m.stepIndex(step)
	if err != nil {
		return nil, err
	}
	values, ok := m.Point[name]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("mesh: no point array %q", name))
	}
	n := int(m.Extent.Len())
	if len(values) != n*m.NumSteps() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("mesh: point array %q has %d values, want %d", name, len(values), n*m.NumSteps()))
	}
	return values[s*n : (s+1)*n], nil
}

// InfoStep returns the values of information array name at the
// provided step. The returned slice aliases the mesh.
func (m *Mesh) InfoStep(name string, step int64) ([]float64, error) {
	s, err := m.stepIndex(step)
	if err != nil {
		return nil, err
	}
	values, ok := m.Info[name]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("mesh: no information array %q", name))
	}
	if len(values)%m.NumSteps() != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("mesh: information array %q has %d values for %d steps", name, len(values), m.NumSteps()))
	}
	n := len(values) / m.NumSteps()
	return values[s*n : (s+1)*n], nil
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh extent=%v steps=%v", m.Extent, m.Steps)
}
