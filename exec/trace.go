// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/gridslice/internal/trace"
)

// spanKey identifies a span: a named activity of a participant.
type spanKey struct {
	rank int
	name string
}

// A tracer records the activity of the participants of a session in
// the Chrome tracing format, viewable with chrome://tracing. Each
// participant is a "process"; concurrent requests of a participant are
// given virtual thread ids so that they render on separate rows.
// Begin ("B") and end ("E") events are coalesced into complete ("X")
// events when the trace is marshaled.
type tracer struct {
	mu sync.Mutex

	// meta holds process naming events.
	meta  []trace.Event
	spans map[spanKey][]trace.Event
	tids  map[int]tidPool

	// first is the time of the first event; event times are offsets
	// from it.
	first time.Time
}

// tidPool is a pool of virtual thread ids of one participant. Index i
// holds whether tid i+1 is available.
type tidPool []bool

func newTracer() *tracer {
	return &tracer{
		spans: make(map[spanKey][]trace.Event),
		tids:  make(map[int]tidPool),
	}
}

// Event records an event of type ph ("B" or "E") for the span name of
// the participant rank. Args are interleaved key-value pairs attached
// to the event. A nil tracer ignores events.
func (t *tracer) Event(rank int, name, cat, ph string, args ...interface{}) {
	if t == nil {
		return
	}
	if len(args)%2 != 0 {
		panic("tracer.Event: invalid arguments")
	}
	event := trace.Event{
		Pid:  rank,
		Ph:   ph,
		Name: name,
		Cat:  cat,
		Args: make(map[string]interface{}, len(args)/2),
	}
	for i := 0; i < len(args); i += 2 {
		event.Args[fmt.Sprint(args[i])] = args[i+1]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.first.IsZero() {
		t.first = time.Now()
	} else {
		event.Ts = time.Since(t.first).Nanoseconds() / 1e3
	}
	pool, ok := t.tids[rank]
	if !ok {
		t.meta = append(t.meta, trace.Event{
			Pid:  rank,
			Ts:   event.Ts,
			Ph:   "M",
			Name: "process_name",
			Args: map[string]interface{}{"name": fmt.Sprintf("rank %d", rank)},
		})
	}
	key := spanKey{rank, name}
	switch ph {
	case "B":
		event.Tid = pool.Acquire()
	case "E":
		if prev := t.spans[key]; len(prev) > 0 && prev[len(prev)-1].Ph == "B" {
			event.Tid = prev[len(prev)-1].Tid
			pool.Release(event.Tid)
		}
	}
	t.tids[rank] = pool
	t.spans[key] = append(t.spans[key], event)
}

// Marshal writes the trace to w in Chrome's event tracing format.
func (t *tracer) Marshal(w io.Writer) error {
	t.mu.Lock()
	events := append([]trace.Event(nil), t.meta...)
	for _, span := range t.spans {
		events = appendCoalesce(events, span)
	}
	t.mu.Unlock()
	sort.SliceStable(events, func(i, j int) bool { return events[i].Ts < events[j].Ts })
	return (&trace.T{Events: events}).Encode(w)
}

// writeFile writes the trace to path, which may name any location
// supported by package file.
func (t *tracer) writeFile(ctx context.Context, path string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(ctx); err == nil {
			err = cerr
		}
	}()
	return t.Marshal(f.Writer(ctx))
}

// appendCoalesce appends the events of a span to list, matching each
// "B" event with the following "E" event into a single "X" event.
// Unmatched events are dropped.
func appendCoalesce(list []trace.Event, events []trace.Event) []trace.Event {
	begin := -1
	for _, event := range events {
		switch event.Ph {
		case "B":
			if begin >= 0 {
				// Unmatched begin; replace it.
				list = append(list[:begin], list[begin+1:]...)
			}
			begin = len(list)
			list = append(list, event)
		case "E":
			if begin < 0 {
				continue
			}
			b := &list[begin]
			b.Ph = "X"
			if b.Dur = event.Ts - b.Ts; b.Dur == 0 {
				b.Dur = 1
			}
			for k, v := range event.Args {
				if _, ok := b.Args[k]; !ok {
					b.Args[k] = v
				}
			}
			begin = -1
		default:
			list = append(list, event)
		}
	}
	if begin >= 0 {
		list = append(list[:begin], list[begin+1:]...)
	}
	return list
}

// Acquire returns an available thread id. Thread ids are 1-indexed;
// 0 is used for events without a meaningful thread.
func (p *tidPool) Acquire() int {
	for i, available := range *p {
		if available {
			(*p)[i] = false
			return i + 1
		}
	}
	*p = append(*p, false)
	return len(*p)
}

// Release makes tid, previously returned by Acquire, available again.
func (p tidPool) Release(tid int) {
	if p[tid-1] {
		panic("tidPool: releasing unallocated tid")
	}
	p[tid-1] = true
}
