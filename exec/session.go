// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/grid"
	"github.com/grailbio/gridslice/meta"
	"github.com/grailbio/gridslice/stats"
)

// An Algorithm produces the mesh described by a request.
type Algorithm func(ctx context.Context, req meta.Metadata) (*grid.Mesh, error)

// A Sink consumes the meshes produced by a run. Write is called from
// worker goroutines in completion order, which is in general not the
// order in which requests were made; Write must therefore be safe for
// concurrent use.
//
// Begin and Close are called once per run, by every participant, in
// the same order. Close is always called once Begin succeeds; cause is
// the first local error of the run, if any, so that sinks performing
// collective operations can report it to the other participants.
type Sink interface {
	Begin(ctx context.Context, c comm.Communicator, md meta.Metadata, plan gridslice.Plan, ordered bool) error
	Write(ctx context.Context, m *grid.Mesh) error
	Close(ctx context.Context, cause error) error
}

// Session runs pipelines on a participant. A session holds the
// participant's thread pool configuration, its status reporter and
// its counters; it may run several pipelines in sequence.
//
//	sess := exec.Start(exec.Parallelism(4))
//	ex := exec.NewSpaceTime(exec.DefaultSpaceTimeConfig())
//	if err := sess.Run(ctx, c, src.Metadata(), ex, src.Execute, writer); err != nil {
//		log.Fatal(err)
//	}
type Session struct {
	p         int
	status    *status.Status
	stats     *stats.Map
	tracePath string
	tracer    *tracer
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Parallelism configures the session with the provided number of
// worker threads.
func Parallelism(p int) Option {
	if p <= 0 {
		panic("exec.Parallelism: p <= 0")
	}
	return func(s *Session) {
		s.p = p
	}
}

// Status configures the session with a status object to which
// run progress is reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status
	}
}

// TracePath configures the session to record a trace of its runs,
// written to path by Shutdown. The trace is in Chrome's tracing format
// and may be viewed at chrome://tracing.
func TracePath(path string) Option {
	return func(s *Session) {
		s.tracePath = path
	}
}

// Start creates a new session configured according to the provided
// options. Without Parallelism, the session uses GOMAXPROCS threads.
func Start(options ...Option) *Session {
	s := &Session{stats: stats.NewMap()}
	for _, opt := range options {
		opt(s)
	}
	if s.p == 0 {
		s.p = runtime.GOMAXPROCS(0)
	}
	if s.tracePath != "" {
		s.tracer = newTracer()
	}
	return s
}

// Shutdown releases the session's resources. If the session was
// configured with TracePath, the trace of all of its runs is written.
func (s *Session) Shutdown(ctx context.Context) error {
	if s.tracer == nil {
		return nil
	}
	if err := s.tracer.writeFile(ctx, s.tracePath); err != nil {
		log.Error.Printf("exec: writing trace %s: %v", s.tracePath, err)
		return err
	}
	return nil
}

// Parallelism returns the number of worker threads of the session.
func (s *Session) Parallelism() int {
	return s.p
}

// Status returns the session's status aggregator, or nil.
func (s *Session) Status() *status.Status {
	return s.status
}

// Stats returns the session's counters.
func (s *Session) Stats() *stats.Map {
	return s.stats
}

// Run initializes the executive with the pipeline metadata md and
// executes alg for every request it makes, delivering results to
// sink. Requests run concurrently on the session's threads.
//
// If sink is non-nil, the executive must implement Planner. Execution
// is ordered (results arrive in request order) only with one thread
// on a single participant; the sink is told so in Begin.
//
// Run returns the first error encountered. Local computation errors
// are passed to sink.Close so that collective sinks fail on every
// participant together.
func (s *Session) Run(ctx context.Context, c comm.Communicator, md meta.Metadata, ex Executive, alg Algorithm, sink Sink) error {
	rank, size := comm.RankSize(c)
	s.tracer.Event(rank, "initialize", "executive", "B")
	err := ex.Initialize(ctx, c, md)
	s.tracer.Event(rank, "initialize", "executive", "E")
	if err != nil {
		return err
	}
	planned := -1
	if p, ok := ex.(Planner); ok {
		planned = p.Plan().Count
	}
	if sink != nil {
		p, ok := ex.(Planner)
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("exec.Run: executive %T does not provide a plan", ex))
		}
		ordered := s.p == 1 && size == 1
		if err := sink.Begin(ctx, c, md, p.Plan(), ordered); err != nil {
			return err
		}
	}
	var task *status.Task
	if s.status != nil {
		task = s.status.Groupf("gridslice rank %d/%d", rank, size).Start("requests")
	}
	err = s.drain(ctx, rank, ex, alg, sink, planned, task)
	if sink != nil {
		s.tracer.Event(rank, "close", "sink", "B")
		if cerr := sink.Close(ctx, err); err == nil {
			err = cerr
		}
		s.tracer.Event(rank, "close", "sink", "E")
	}
	if task != nil {
		if err != nil {
			task.Printf("error: %v", err)
		}
		task.Done()
	}
	if err != nil {
		log.Error.Printf("exec.Run: rank %d: %v", rank, err)
	} else {
		log.Debug.Printf("exec.Run: rank %d done: %s", rank, s.stats.Snapshot())
	}
	return err
}
