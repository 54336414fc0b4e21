// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grid

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/meta"
	"gonum.org/v1/gonum/floats"
)

// Default pipeline-control keys reported by Source.
const (
	DefaultInitializerKey = "number_of_time_steps"
	DefaultRequestKey     = "time_step"
)

// A Field generates a point-centered array from coordinates and time.
type Field struct {
	Name string
	Func func(x, y, z, t float64) float64
}

// An InfoField generates a fixed-size information array per time step.
type InfoField struct {
	Name string
	Size int
	Func func(t float64, out []float64)
}

// Source generates meshes over a uniformly spaced Cartesian grid.
// Coordinates span Bounds over WholeExtent and NumSteps time values
// span TimeBounds.
type Source struct {
	WholeExtent gridslice.Extent
	Bounds      [6]float64
	NumSteps    int64
	TimeBounds  [2]float64
	// Calendar and Units describe the time axis, e.g. "standard" and
	// "days since 2022-01-01 00:00:00".
	Calendar, Units string

	Fields     []Field
	InfoFields []InfoField

	// InitializerKey and RequestKey override DefaultInitializerKey and
	// DefaultRequestKey.
	InitializerKey, RequestKey string
}

func span(n int64, lo, hi float64) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

func (s *Source) initializerKey() string {
	if s.InitializerKey != "" {
		return s.InitializerKey
	}
	return DefaultInitializerKey
}

func (s *Source) requestKey() string {
	if s.RequestKey != "" {
		return s.RequestKey
	}
	return DefaultRequestKey
}

func (s *Source) axis(a int) []float64 {
	return span(s.WholeExtent.Size(a), s.Bounds[2*a], s.Bounds[2*a+1])
}

func (s *Source) times() []float64 {
	return span(s.NumSteps, s.TimeBounds[0], s.TimeBounds[1])
}

// Metadata returns the pipeline metadata describing the data s can
// produce.
func (s *Source) Metadata() meta.Metadata {
	var md meta.Metadata
	md.SetInts(gridslice.KeyWholeExtent, s.WholeExtent.Ints()...)
	md.SetFloats(gridslice.KeyXCoordinates, s.axis(0)...)
	md.SetFloats(gridslice.KeyYCoordinates, s.axis(1)...)
	md.SetFloats(gridslice.KeyZCoordinates, s.axis(2)...)
	if s.NumSteps > 0 {
		md.SetFloats(gridslice.KeyTime, s.times()...)
	}
	if s.Calendar != "" {
		md.SetString(gridslice.KeyCalendar, s.Calendar)
	}
	if s.Units != "" {
		md.SetString(gridslice.KeyTimeUnits, s.Units)
	}
	md.SetString(gridslice.KeyIndexInitializer, s.initializerKey())
	md.SetInt(s.initializerKey(), s.NumSteps)
	md.SetString(gridslice.KeyIndexRequest, s.requestKey())

	var (
		points = make([]string, len(s.Fields))
		infos  = make([]string, len(s.InfoFields))
		sizes  = make([]int64, len(s.InfoFields))
	)
	for i, f := range s.Fields {
		points[i] = f.Name
	}
	for i, f := range s.InfoFields {
		infos[i] = f.Name
		sizes[i] = int64(f.Size)
	}
	md.SetStrings(gridslice.KeyPointArrays, points...)
	md.SetStrings(gridslice.KeyInformationArrays, infos...)
	md.SetInts(gridslice.KeyInformationArraySizes, sizes...)
	return md
}

// Steps returns the inclusive step range requested by req: either a
// single index or a two-element range stored under the key named by
// key.
func Steps(req meta.Metadata, key string) (gridslice.TemporalExtent, error) {
	v, err := req.Ints(key)
	if err != nil {
		return gridslice.TemporalExtent{}, errors.E(gridslice.MissingMetadata, fmt.Sprintf("request has no %q", key), err)
	}
	switch len(v) {
	case 1:
		return gridslice.TemporalExtent{v[0], v[0]}, nil
	case 2:
		if v[1] < v[0] {
			return gridslice.TemporalExtent{}, errors.E(gridslice.InvalidRange, fmt.Sprintf("request %q: inverted range %v", key, v))
		}
		return gridslice.TemporalExtent{v[0], v[1]}, nil
	default:
		return gridslice.TemporalExtent{}, errors.E(gridslice.InvalidRange, fmt.Sprintf("request %q: have %d values", key, len(v)))
	}
}

// Execute generates the mesh requested by req. The request may name
// an extent (the whole extent by default), must name the steps to
// produce under the request key, and may restrict the arrays produced.
func (s *Source) Execute(ctx context.Context, req meta.Metadata) (*Mesh, error) {
	ext := s.WholeExtent
	if v, err := req.Ints(gridslice.KeyExtent); err == nil {
		if ext, err = gridslice.ExtentOf(v); err != nil {
			return nil, err
		}
		if !s.WholeExtent.Contains(ext) {
			return nil, errors.E(gridslice.OutOfRange, fmt.Sprintf("source: extent %v not in %v", ext, s.WholeExtent))
		}
	}
	steps, err := Steps(req, s.requestKey())
	if err != nil {
		return nil, err
	}
	if steps[0] < 0 || steps[1] >= s.NumSteps {
		return nil, errors.E(gridslice.OutOfRange, fmt.Sprintf("source: steps %v not in [0, %d)", steps, s.NumSteps))
	}
	fields := s.Fields
	if names, err := req.Strings(gridslice.KeyArrays); err == nil && len(names) > 0 {
		if fields, err = s.selectFields(names); err != nil {
			return nil, err
		}
	}

	m := NewMesh(ext, steps)
	if id, err := req.Int(gridslice.KeyDeviceID); err == nil {
		m.DeviceID = int(id)
	}
	var (
		x, y, z = s.axis(0), s.axis(1), s.axis(2)
		o       = s.WholeExtent
	)
	m.X = x[ext[0]-o[0] : ext[1]-o[0]+1]
	m.Y = y[ext[2]-o[2] : ext[3]-o[2]+1]
	m.Z = z[ext[4]-o[4] : ext[5]-o[4]+1]
	m.Time = s.times()[steps[0] : steps[1]+1]

	npts := int(ext.Len())
	for _, f := range fields {
		values := make([]float64, 0, npts*m.NumSteps())
		for _, t := range m.Time {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, zv := range m.Z {
				for _, yv := range m.Y {
					for _, xv := range m.X {
						values = append(values, f.Func(xv, yv, zv, t))
					}
				}
			}
		}
		m.Point[f.Name] = values
	}
	for _, f := range s.InfoFields {
		values := make([]float64, f.Size*m.NumSteps())
		for i, t := range m.Time {
			f.Func(t, values[i*f.Size:(i+1)*f.Size])
		}
		m.Info[f.Name] = values
	}
	return m, nil
}

func (s *Source) selectFields(names []string) ([]Field, error) {
	byName := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		byName[f.Name] = f
	}
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		f, ok := byName[name]
		if !ok {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("source: no array %q", name))
		}
		fields = append(fields, f)
	}
	return fields, nil
}
