// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package comm defines the communicator used by gridslice participants
// to synchronize collective operations, and provides an in-process
// implementation in which participants are goroutines.
package comm

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/sync/ctxsync"
)

// A Communicator connects the participants of a run. Collective
// methods (Barrier, AllReduceMax) must be called by every participant,
// in the same order; they block until all participants have arrived.
type Communicator interface {
	// Rank returns the participant's rank in [0, Size).
	Rank() int
	// Size returns the number of participants.
	Size() int
	// Barrier returns once every participant has called Barrier.
	Barrier(ctx context.Context) error
	// AllReduceMax returns the maximum of the values contributed by
	// all participants.
	AllReduceMax(ctx context.Context, v int64) (int64, error)
}

// RankSize returns the rank and size of c. A nil communicator
// stands for a single participant run.
func RankSize(c Communicator) (rank, size int) {
	if c == nil {
		return 0, 1
	}
	return c.Rank(), c.Size()
}

// Self is the communicator of a single participant run.
var Self Communicator = self{}

type self struct{}

func (self) Rank() int                                              { return 0 }
func (self) Size() int                                              { return 1 }
func (self) Barrier(ctx context.Context) error                      { return ctx.Err() }
func (self) AllReduceMax(ctx context.Context, v int64) (int64, error) { return v, ctx.Err() }

// Local returns n communicators whose participants run in the same
// process, typically one goroutine per rank. If any participant
// abandons a collective operation (its context is done), the world is
// broken: every pending and future collective call fails.
func Local(n int) []Communicator {
	if n < 1 {
		panic("comm.Local: n < 1")
	}
	w := &world{n: n}
	w.cond = ctxsync.NewCond(&w.mu)
	comms := make([]Communicator, n)
	for i := range comms {
		comms[i] = &local{world: w, rank: i}
	}
	return comms
}

type world struct {
	n    int
	mu   sync.Mutex
	cond *ctxsync.Cond

	// gen is incremented each time all participants have arrived.
	gen     int
	arrived int
	acc     int64
	result  int64
	err     error
}

func (w *world) reduce(ctx context.Context, rank int, v int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	if w.arrived == 0 || v > w.acc {
		w.acc = v
	}
	w.arrived++
	if w.arrived == w.n {
		w.result = w.acc
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
		return w.result, nil
	}
	gen := w.gen
	for w.gen == gen && w.err == nil {
		if err := w.cond.Wait(ctx); err != nil {
			w.err = errors.E(errors.Unavailable, fmt.Sprintf("comm: rank %d abandoned a collective operation", rank), err)
			w.cond.Broadcast()
			return 0, w.err
		}
	}
	if w.gen == gen {
		return 0, w.err
	}
	// The next generation cannot complete before this participant
	// arrives again, so result still belongs to this generation.
	return w.result, nil
}

type local struct {
	*world
	rank int
}

func (l *local) Rank() int { return l.rank }
func (l *local) Size() int { return l.n }

func (l *local) Barrier(ctx context.Context) error {
	_, err := l.reduce(ctx, l.rank, 0)
	return err
}

func (l *local) AllReduceMax(ctx context.Context, v int64) (int64, error) {
	return l.reduce(ctx, l.rank, v)
}
