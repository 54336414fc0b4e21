// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gridio implements a self-describing file format for
// gridded time series and a streaming writer that assembles files
// from results arriving out of order, on several participants.
package gridio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/grid"
	"github.com/grailbio/gridslice/meta"
	"github.com/grailbio/gridslice/stats"
)

// Mode determines how the writer treats existing files.
type Mode int

const (
	// Clobber overwrites existing files.
	Clobber Mode = iota
	// NoClobber fails if a file exists.
	NoClobber
)

func (m Mode) String() string {
	switch m {
	case Clobber:
		return "clobber"
	case NoClobber:
		return "noclobber"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name, as returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "clobber":
		return Clobber, nil
	case "noclobber":
		return NoClobber, nil
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("gridio: unknown mode %q", s))
}

// Config configures a Writer.
type Config struct {
	// FileName is the file name template. TimePlaceholder is replaced
	// by the date or index of each file's first step.
	FileName string
	// DateFormat is the strftime format of dates in file names.
	DateFormat string
	// StepsPerFile is the number of steps written to each file.
	StepsPerFile int
	Mode         Mode
	// UnlimitedDim writes an extendable time dimension. It requires
	// ordered execution.
	UnlimitedDim bool
	// CompressionLevel enables compression when positive. It requires
	// ordered execution.
	CompressionLevel int
	// FlushFiles syncs each file to stable storage before it is
	// considered written.
	FlushFiles bool
	// PointArrays and InfoArrays select the arrays written. When
	// empty, the arrays cataloged in the pipeline metadata are written.
	PointArrays []string
	InfoArrays  []string
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		FileName:     "gridslice_" + TimePlaceholder + ".gsl",
		DateFormat:   DefaultDateFormat,
		StepsPerFile: 128,
		Mode:         Clobber,
	}
}

// bucket collects the local tiles of one output file until it is
// written.
type bucket struct {
	id    int
	name  string
	steps gridslice.TemporalExtent
	// expect holds the number of local meshes expected for each step;
	// want is their sum.
	expect []int
	want   int
	have   int
	// tiles holds, for each step of the file, the local meshes that
	// cover it. It is allocated on first arrival.
	tiles [][]*grid.Mesh
}

func (b *bucket) complete() bool {
	return b.have == b.want
}

// Writer writes the meshes of a run to a series of files, each holding
// a fixed number of steps of the working extent. Meshes may arrive in
// any order; they are buffered until every local mesh contributing to
// the lowest unwritten file has arrived, at which point that file is
// written collectively by all participants.
//
// Writer implements exec.Sink.
type Writer struct {
	config Config
	stats  *stats.Map

	mu        sync.Mutex
	comm      comm.Communicator
	rank      int
	plan      gridslice.Plan
	header    Header
	times     []float64
	files     []*bucket
	next      int
	begun     bool
	streaming bool
	failed    error
	diags     []error
}

// NewWriter returns a writer with the provided configuration.
func NewWriter(config Config) *Writer {
	return &Writer{config: config, stats: stats.NewMap()}
}

// Config returns the writer's configuration.
func (w *Writer) Config() Config {
	return w.config
}

// Stats returns the writer's counters.
func (w *Writer) Stats() *stats.Map {
	return w.stats
}

// Diagnostics returns the non-fatal configuration problems reported
// by the last call to Begin.
func (w *Writer) Diagnostics() []error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]error(nil), w.diags...)
}

// Files returns the names of the files of the current run, in step
// order.
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, len(w.files))
	for i, f := range w.files {
		names[i] = f.name
	}
	return names
}

func (w *Writer) diagnose(err error) {
	log.Printf("gridio.Writer: %v", err)
	w.diags = append(w.diags, err)
}

// Begin prepares the writer for a run described by md and plan. Every
// participant must call Begin with its own plan. Begin computes the
// global file set and the number of local meshes expected for each
// file.
func (w *Writer) Begin(ctx context.Context, c comm.Communicator, md meta.Metadata, plan gridslice.Plan, ordered bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c == nil {
		c = comm.Self
	}
	w.comm, w.rank = c, c.Rank()
	w.begun, w.failed, w.diags = false, nil, nil
	w.files, w.next = nil, 0
	if w.config.StepsPerFile < 1 {
		return errors.E(gridslice.InvalidRange, fmt.Sprintf("gridio: %d steps per file", w.config.StepsPerFile))
	}
	if w.config.FileName == "" {
		return errors.E(errors.Invalid, "gridio: no file name")
	}
	if !plan.Extent.Valid() || plan.Steps.Len() < 1 {
		return errors.E(gridslice.InvalidRange, fmt.Sprintf("gridio: empty plan: extent %v steps %v", plan.Extent, plan.Steps))
	}
	h, err := w.makeHeader(md, plan)
	if err != nil {
		return err
	}
	if ordered {
		h.Unlimited = w.config.UnlimitedDim
		h.Compressed = w.config.CompressionLevel > 0
	} else {
		if w.config.UnlimitedDim {
			w.diagnose(errors.E(gridslice.UnsupportedConfiguration,
				"unlimited time dimension requires ordered execution; it has been disabled"))
		}
		if w.config.CompressionLevel > 0 {
			w.diagnose(errors.E(gridslice.UnsupportedConfiguration,
				"compression requires ordered execution; it has been disabled"))
		}
	}
	w.streaming = h.Unlimited || h.Compressed
	w.plan, w.header = plan, h
	w.times = nil
	if times, err := md.Floats(gridslice.KeyTime); err == nil && int64(len(times)) > plan.Steps[1] {
		w.times = times
	}

	var (
		spf    = int64(w.config.StepsPerFile)
		nfiles = (plan.Steps.Len() + spf - 1) / spf
		names  = make([]string, nfiles)
	)
	w.files = make([]*bucket, nfiles)
	for i := range w.files {
		first := plan.Steps[0] + int64(i)*spf
		last := first + spf - 1
		if last > plan.Steps[1] {
			last = plan.Steps[1]
		}
		var t float64
		if w.times != nil {
			t = w.times[first]
		}
		names[i] = FileName(w.config.FileName, w.config.DateFormat, first, t, w.times != nil, h.Calendar, h.Units)
		w.files[i] = &bucket{
			id:     i,
			name:   names[i],
			steps:  gridslice.TemporalExtent{first, last},
			expect: make([]int, last-first+1),
		}
	}
	if err := checkUnique(names); err != nil {
		return err
	}
	for _, u := range plan.Units {
		if u.Temporal[0] < plan.Steps[0] || u.Temporal[1] > plan.Steps[1] {
			return errors.E(gridslice.InvalidRange, fmt.Sprintf("gridio: unit %d steps %v outside %v", u.Index, u.Temporal, plan.Steps))
		}
		for t := u.Temporal[0]; t <= u.Temporal[1]; t++ {
			f := w.files[w.fileOf(t)]
			f.expect[t-f.steps[0]]++
			f.want++
		}
	}
	w.begun = true
	log.Debug.Printf("gridio.Writer: rank %d: %d files of %d steps, %d local units, streaming=%v",
		w.rank, nfiles, spf, len(plan.Units), w.streaming)
	return nil
}

func (w *Writer) makeHeader(md meta.Metadata, plan gridslice.Plan) (Header, error) {
	h := Header{
		Version: Version,
		RunID:   uuid.New().String(),
		Extent:  plan.Extent,
	}
	if id, err := md.String(gridslice.KeyRunID); err == nil {
		h.RunID = id
	}
	h.Calendar, _ = md.String(gridslice.KeyCalendar)
	h.Units, _ = md.String(gridslice.KeyTimeUnits)

	h.PointArrays = w.config.PointArrays
	if len(h.PointArrays) == 0 {
		h.PointArrays, _ = md.Strings(gridslice.KeyPointArrays)
	}
	names, _ := md.Strings(gridslice.KeyInformationArrays)
	sizes, _ := md.Ints(gridslice.KeyInformationArraySizes)
	if len(names) != len(sizes) {
		return h, errors.E(gridslice.MissingMetadata,
			fmt.Sprintf("gridio: %d information arrays but %d sizes", len(names), len(sizes)))
	}
	size := make(map[string]int, len(names))
	for i, name := range names {
		size[name] = int(sizes[i])
	}
	want := w.config.InfoArrays
	if len(want) == 0 {
		want = names
	}
	for _, name := range want {
		n, ok := size[name]
		if !ok {
			return h, errors.E(gridslice.MissingMetadata, fmt.Sprintf("gridio: no size for information array %q", name))
		}
		h.InfoArrays = append(h.InfoArrays, InfoArray{Name: name, Size: n})
	}
	if len(h.PointArrays) == 0 && len(h.InfoArrays) == 0 {
		return h, errors.E(errors.Invalid, "gridio: no arrays to write")
	}

	if v, err := md.Ints(gridslice.KeyWholeExtent); err == nil {
		if whole, err := gridslice.ExtentOf(v); err == nil && whole.Contains(plan.Extent) {
			for axis, key := range []string{gridslice.KeyXCoordinates, gridslice.KeyYCoordinates, gridslice.KeyZCoordinates} {
				coords, err := md.Floats(key)
				if err != nil || int64(len(coords)) != whole.Size(axis) {
					continue
				}
				lo := plan.Extent[2*axis] - whole[2*axis]
				hi := plan.Extent[2*axis+1] - whole[2*axis]
				coords = coords[lo : hi+1]
				switch axis {
				case 0:
					h.X = coords
				case 1:
					h.Y = coords
				case 2:
					h.Z = coords
				}
			}
		}
	}
	return h, nil
}

func (w *Writer) fileOf(step int64) int {
	return int((step - w.plan.Steps[0]) / int64(w.config.StepsPerFile))
}

// isOrigin tells whether m holds the origin of the working extent.
// Information arrays are written from that mesh only.
func (w *Writer) isOrigin(m *grid.Mesh) bool {
	e := w.plan.Extent
	return m.Extent[0] == e[0] && m.Extent[2] == e[2] && m.Extent[4] == e[4]
}

// Write buffers the mesh m and writes every file that is now complete
// locally, in ascending order. Writing a file is a collective
// operation: Write blocks until the other participants write it too.
// Write is safe for concurrent use.
func (w *Writer) Write(ctx context.Context, m *grid.Mesh) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.begun {
		return errors.E(errors.Invalid, "gridio.Writer: Write called outside of a run")
	}
	if w.failed != nil {
		return w.failed
	}
	if err := w.insert(m); err != nil {
		return err
	}
	for w.next < len(w.files) && w.files[w.next].complete() {
		if err := w.flush(ctx, w.files[w.next], 0); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) insert(m *grid.Mesh) error {
	if !w.plan.Steps.Contains(m.Steps[0]) || !w.plan.Steps.Contains(m.Steps[1]) || m.Steps[1] < m.Steps[0] {
		return errors.E(gridslice.OutOfRange, fmt.Sprintf("gridio.Writer: %v: steps outside %v", m, w.plan.Steps))
	}
	if !w.plan.Extent.Contains(m.Extent) {
		return errors.E(gridslice.OutOfRange, fmt.Sprintf("gridio.Writer: %v: extent outside %v", m, w.plan.Extent))
	}
	for _, name := range w.header.PointArrays {
		if got, want := int64(len(m.Point[name])), m.Extent.Len()*m.Steps.Len(); got != want {
			return errors.E(errors.Invalid, fmt.Sprintf("gridio.Writer: %v: point array %q has %d values, want %d", m, name, got, want))
		}
	}
	if w.isOrigin(m) {
		for _, info := range w.header.InfoArrays {
			if got, want := int64(len(m.Info[info.Name])), int64(info.Size)*m.Steps.Len(); got != want {
				return errors.E(errors.Invalid, fmt.Sprintf("gridio.Writer: %v: information array %q has %d values, want %d", m, info.Name, got, want))
			}
		}
	}
	for t := m.Steps[0]; t <= m.Steps[1]; t++ {
		f := w.files[w.fileOf(t)]
		if f.id < w.next {
			return errors.E(errors.Invalid, fmt.Sprintf("gridio.Writer: %v: %s has already been written", m, f.name))
		}
		s := t - f.steps[0]
		if f.tiles != nil && len(f.tiles[s]) >= f.expect[s] || f.expect[s] == 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("gridio.Writer: %v: unexpected data for %s", m, f.name))
		}
	}
	for t := m.Steps[0]; t <= m.Steps[1]; t++ {
		f := w.files[w.fileOf(t)]
		if f.tiles == nil {
			f.tiles = make([][]*grid.Mesh, f.steps.Len())
		}
		f.tiles[t-f.steps[0]] = append(f.tiles[t-f.steps[0]], m)
		f.have++
		w.stats.Int("tiles").Add(1)
		w.stats.Int("pending_max").Max(w.stats.Int("pending").Add(1))
	}
	return nil
}

// Close ends the run. Files not yet written are written in order. If
// cause is non-nil, or if this participant is missing data for a
// file, the failure is reported to every participant and the run
// fails everywhere. Close returns cause if it is non-nil.
func (w *Writer) Close(ctx context.Context, cause error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.begun {
		return cause
	}
	defer func() {
		w.begun = false
	}()
	if w.failed != nil {
		if cause != nil {
			return cause
		}
		return w.failed
	}
	var status int64
	if cause != nil {
		status = 1
	}
	for w.next < len(w.files) {
		f := w.files[w.next]
		st := status
		if st == 0 && !f.complete() {
			log.Error.Printf("gridio.Writer: rank %d: %s: have %d of %d local steps", w.rank, f.name, f.have, f.want)
			st = 1
		}
		if err := w.flush(ctx, f, st); err != nil {
			if cause != nil {
				return cause
			}
			return err
		}
	}
	return cause
}

// flush writes file f. A non-zero status reports a local failure to
// the other participants.
func (w *Writer) flush(ctx context.Context, f *bucket, status int64) error {
	defer w.release(f)
	if w.streaming {
		return w.stream(ctx, f, status)
	}
	return w.collective(ctx, f, status)
}

func (w *Writer) release(f *bucket) {
	w.stats.Int("pending").Add(-int64(f.have))
	f.tiles = nil
	w.next = f.id + 1
}

func (w *Writer) fileHeader(f *bucket) Header {
	h := w.header
	h.Steps = f.steps
	if w.times != nil {
		h.Time = w.times[f.steps[0] : f.steps[1]+1]
	}
	return h
}

func (w *Writer) fail(f *bucket, err error) error {
	msg := fmt.Sprintf("gridio.Writer: rank %d: collective write of %s failed", w.rank, f.name)
	if err != nil {
		w.failed = errors.E(gridslice.CollectiveIO, errors.Fatal, msg, err)
	} else {
		w.failed = errors.E(gridslice.CollectiveIO, errors.Fatal, msg)
	}
	log.Error.Printf("%v", w.failed)
	return w.failed
}

// eachRow calls fn for every contiguous run of values that mesh m
// contributes to the record of the provided step, with the run's
// offset in the record.
func (w *Writer) eachRow(h *Header, m *grid.Mesh, step int64, fn func(off int64, vals []float64) error) error {
	var (
		e      = h.Extent
		t      = m.Extent
		nx, ny = e.Size(0), e.Size(1)
		tx, ty = t.Size(0), t.Size(1)
	)
	for a, name := range h.PointArrays {
		vals, err := m.PointStep(name, step)
		if err != nil {
			return err
		}
		base := h.PointOffset(a)
		for k := t[4]; k <= t[5]; k++ {
			for j := t[2]; j <= t[3]; j++ {
				src := ((k-t[4])*ty + (j - t[2])) * tx
				dst := ((k-e[4])*ny+(j-e[2]))*nx + (t[0] - e[0])
				if err := fn(base+8*dst, vals[src:src+tx]); err != nil {
					return err
				}
			}
		}
	}
	if !w.isOrigin(m) {
		return nil
	}
	for a, info := range h.InfoArrays {
		vals, err := m.InfoStep(info.Name, step)
		if err != nil {
			return err
		}
		if err := fn(h.InfoOffset(a), vals); err != nil {
			return err
		}
	}
	return nil
}
