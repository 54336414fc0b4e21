// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/grailbio/base/limitbuf"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice/internal/trace"
)

// span is a complete activity of a participant: the initialization of
// its executive, a request or the close of its sink.
type span struct {
	rank int
	cat  string
	name string
	// start is measured as an offset from the start of tracing.
	start    time.Duration
	duration time.Duration
	err      string
}

// spanStat holds statistics for the spans of one category of one
// participant.
type spanStat struct {
	rank   int
	cat    string
	count  int
	failed int
	// start is measured as an offset from the start of tracing.
	start    time.Duration
	duration time.Duration
	total    time.Duration
	min      time.Duration
	q1       time.Duration
	q2       time.Duration
	q3       time.Duration
	max      time.Duration
}

// Concurrency returns the average number of spans in flight between
// the first start and the last end.
func (s spanStat) Concurrency() float64 {
	if s.duration == 0 {
		return 0
	}
	return float64(s.total) / float64(s.duration)
}

// summary interprets the events of a gridslice session trace.
type summary struct {
	ranks []int
	spans []span
	stats []spanStat
}

func summarize(events []trace.Event) *summary {
	spans := buildSpans(events)
	s := &summary{spans: spans, stats: buildStats(spans)}
	seen := make(map[int]bool)
	for _, span := range spans {
		if !seen[span.rank] {
			seen[span.rank] = true
			s.ranks = append(s.ranks, span.rank)
		}
	}
	sort.Ints(s.ranks)
	return s
}

// Ranks returns the ranks of the participants that recorded spans, in
// ascending order.
func (s *summary) Ranks() []int {
	return s.ranks
}

// Stats returns the span statistics of rank, ordered by the start of
// their first span.
func (s *summary) Stats(rank int) []spanStat {
	var stats []spanStat
	for _, stat := range s.stats {
		if stat.rank == rank {
			stats = append(stats, stat)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].start < stats[j].start })
	return stats
}

// Slowest returns the n longest requests of rank, longest first.
func (s *summary) Slowest(rank, n int) []span {
	var spans []span
	for _, span := range s.spans {
		if span.rank == rank && span.cat == "request" {
			spans = append(spans, span)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].duration > spans[j].duration })
	if len(spans) > n {
		spans = spans[:n]
	}
	return spans
}

func buildSpans(events []trace.Event) []span {
	var spans []span
	for _, event := range events {
		switch event.Ph {
		case "X":
		case "M":
			continue
		default:
			log.Printf("skipping uncoalesced event: %#v", event)
			continue
		}
		sp := span{
			rank:     event.Pid,
			cat:      event.Cat,
			name:     event.Name,
			start:    time.Duration(event.Ts) * time.Microsecond,
			duration: time.Duration(event.Dur) * time.Microsecond,
		}
		if msg, ok := event.Args["error"].(string); ok {
			sp.err = msg
		}
		spans = append(spans, sp)
	}
	return spans
}

func buildStats(spans []span) []spanStat {
	type rankCat struct {
		rank int
		cat  string
	}
	type accum struct {
		failed    int
		minStart  time.Duration
		maxEnd    time.Duration
		durations []time.Duration
		total     time.Duration
	}
	accums := make(map[rankCat]*accum)
	for _, sp := range spans {
		key := rankCat{sp.rank, sp.cat}
		a, ok := accums[key]
		if !ok {
			a = &accum{minStart: 1<<63 - 1}
			accums[key] = a
		}
		if sp.start < a.minStart {
			a.minStart = sp.start
		}
		if end := sp.start + sp.duration; a.maxEnd < end {
			a.maxEnd = end
		}
		if sp.err != "" {
			a.failed++
		}
		a.durations = append(a.durations, sp.duration)
		a.total += sp.duration
	}
	stats := make([]spanStat, 0, len(accums))
	for key, a := range accums {
		sort.Slice(a.durations, func(i, j int) bool { return a.durations[i] < a.durations[j] })
		// Each accumulator holds at least one span.
		q1, q2, q3 := quartiles(a.durations)
		stats = append(stats, spanStat{
			rank:     key.rank,
			cat:      key.cat,
			count:    len(a.durations),
			failed:   a.failed,
			start:    a.minStart,
			duration: a.maxEnd - a.minStart,
			total:    a.total,
			min:      a.durations[0],
			q1:       q1,
			q2:       q2,
			q3:       q3,
			max:      a.durations[len(a.durations)-1],
		})
	}
	return stats
}

func truncatef(v interface{}) string {
	b := limitbuf.NewLogger(80)
	fmt.Fprint(b, v)
	return b.String()
}
