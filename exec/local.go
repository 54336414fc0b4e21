// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"golang.org/x/sync/errgroup"
)

// drain pulls requests from the executive until it is exhausted and
// runs each on a goroutine, with at most s.p in flight. Algorithms
// run under a context that is canceled on the first local failure;
// sink writes use the caller's context, since they may take part in
// collective operations that other participants are waiting on.
func (s *Session) drain(ctx context.Context, rank int, ex Executive, alg Algorithm, sink Sink, planned int, task *status.Task) error {
	lim := limiter.New()
	lim.Release(s.p)
	var (
		requests = s.stats.Int("requests")
		done     = s.stats.Int("requests_done")
		failed   = s.stats.Int("requests_failed")
		inflight = s.stats.Int("inflight")
		maxDepth = s.stats.Int("inflight_max")
	)
	g, gctx := errgroup.WithContext(ctx)
	var aborted error
	for {
		req := ex.NextRequest()
		if req.Empty() {
			break
		}
		if err := lim.Acquire(gctx, 1); err != nil {
			// The only errors here are context errors: either a
			// worker failed, and Wait reports it, or the caller
			// canceled the run.
			aborted = err
			break
		}
		requests.Add(1)
		maxDepth.Max(inflight.Add(1))
		g.Go(func() error {
			defer lim.Release(1)
			defer inflight.Add(-1)
			name := req.Format()
			s.tracer.Event(rank, name, "request", "B")
			m, err := alg(gctx, req)
			if err != nil {
				failed.Add(1)
				s.tracer.Event(rank, name, "request", "E", "error", err.Error())
				return errors.E(fmt.Sprintf("exec: request %s", name), err)
			}
			s.tracer.Event(rank, name, "request", "E")
			if sink != nil {
				if err := sink.Write(ctx, m); err != nil {
					failed.Add(1)
					return err
				}
			}
			n := done.Add(1)
			if task != nil {
				if planned >= 0 {
					task.Printf("%d/%d done", n, planned)
				} else {
					task.Printf("%d done", n)
				}
			}
			log.Debug.Printf("exec: completed %s", m)
			return nil
		})
	}
	err := g.Wait()
	if err == nil && aborted != nil {
		err = ctx.Err()
	}
	return err
}
