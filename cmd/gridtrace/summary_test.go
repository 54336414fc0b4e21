// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/grailbio/gridslice/internal/trace"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func events() []trace.Event {
	x := func(rank int, cat, name string, ts, dur int64, args ...string) trace.Event {
		e := trace.Event{Pid: rank, Ph: "X", Cat: cat, Name: name, Ts: ts, Dur: dur, Args: map[string]interface{}{}}
		for i := 0; i < len(args); i += 2 {
			e.Args[args[i]] = args[i+1]
		}
		return e
	}
	return []trace.Event{
		{Pid: 0, Ph: "M", Name: "process_name", Args: map[string]interface{}{"name": "rank 0"}},
		{Pid: 1, Ph: "M", Name: "process_name", Args: map[string]interface{}{"name": "rank 1"}},
		x(0, "executive", "initialize", 0, 1000),
		x(1, "executive", "initialize", 0, 2000),
		x(0, "request", "r0", 1000, 4000),
		x(0, "request", "r1", 1000, 2000),
		x(0, "request", "r2", 3000, 2000),
		x(0, "request", "r3", 5000, 1000),
		x(1, "request", "r4", 2000, 3000, "error", "boom"),
		x(0, "sink", "close", 6000, 500),
		x(1, "sink", "close", 5000, 1500),
		{Pid: 0, Ph: "B", Name: "dangling"},
	}
}

func TestSummary(t *testing.T) {
	s := summarize(events())
	expect.EQ(t, s.Ranks(), []int{0, 1})

	stats := s.Stats(0)
	var cats []string
	for _, st := range stats {
		cats = append(cats, st.cat)
	}
	if diff := cmp.Diff([]string{"executive", "request", "sink"}, cats); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
	req := stats[1]
	ms := time.Millisecond
	expect.EQ(t, req.count, 4)
	expect.EQ(t, req.failed, 0)
	expect.EQ(t, req.start, 1*ms)
	expect.EQ(t, req.duration, 5*ms)
	expect.EQ(t, req.total, 9*ms)
	expect.EQ(t, req.min, 1*ms)
	expect.EQ(t, req.q1, 1*ms)
	expect.EQ(t, req.q2, 2*ms)
	expect.EQ(t, req.q3, 2*ms)
	expect.EQ(t, req.max, 4*ms)
	if got, want := req.Concurrency(), 1.8; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	stats = s.Stats(1)
	expect.EQ(t, len(stats), 3)
	expect.EQ(t, stats[1].failed, 1)
}

func TestSlowest(t *testing.T) {
	s := summarize(events())
	var names []string
	for _, sp := range s.Slowest(0, 2) {
		names = append(names, sp.name)
	}
	expect.EQ(t, names, []string{"r0", "r1"})
	slow := s.Slowest(1, 10)
	expect.EQ(t, len(slow), 1)
	expect.EQ(t, slow[0].err, "boom")
	expect.EQ(t, len(s.Slowest(2, 10)), 0)
}

func TestReport(t *testing.T) {
	var b bytes.Buffer
	assert.NoError(t, report(&b, summarize(events()), 1))
	out := b.String()
	for _, want := range []string{"rank 0", "rank 1", "slowest requests", "r0", "error: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "r1") {
		t.Errorf("report lists more than the slowest request:\n%s", out)
	}
}
