// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command gridtrace summarizes the trace of a gridslice session. Traces
// are written by sessions configured with a trace path, for example
//
//	gridslice -set gridslice.trace-path=/tmp/trace.json
//
// For each participant, gridtrace prints timing statistics of executive
// initialization, requests and sink close, followed by the slowest
// requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice/internal/trace"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gridtrace [-top n] trace

Gridtrace summarizes the trace of a gridslice session.

`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("gridtrace: ")
	top := flag.Int("top", 5, "number of slowest requests to list per participant")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}
	events, err := readTrace(context.Background(), flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	if err := report(os.Stdout, summarize(events), *top); err != nil {
		log.Fatal(err)
	}
}

func readTrace(ctx context.Context, path string) ([]trace.Event, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx) // nolint: errcheck
	var t trace.T
	if err := t.Decode(f.Reader(ctx)); err != nil {
		return nil, errors.E(errors.Invalid, "decoding "+path, err)
	}
	return t.Events, nil
}

func report(w io.Writer, s *summary, top int) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, rank := range s.Ranks() {
		fmt.Fprintf(tw, "rank %d\n", rank)
		fmt.Fprintln(tw, "\tcategory\tspans\tfailed\tstart\tduration\tconcurrency\tmin\tq1\tq2\tq3\tmax")
		for _, st := range s.Stats(rank) {
			fmt.Fprintf(tw, "\t%s\t%d\t%d\t%s\t%s\t%.2f\t%s\t%s\t%s\t%s\t%s\n",
				st.cat, st.count, st.failed, round(st.start), round(st.duration),
				st.Concurrency(), round(st.min), round(st.q1), round(st.q2),
				round(st.q3), round(st.max))
		}
		if slowest := s.Slowest(rank, top); len(slowest) > 0 {
			fmt.Fprintln(tw, "\tslowest requests")
			for _, sp := range slowest {
				fmt.Fprintf(tw, "\t%s\t%s\n", round(sp.duration), truncatef(sp.name))
				if sp.err != "" {
					fmt.Fprintf(tw, "\t\terror: %s\n", truncatef(sp.err))
				}
			}
		}
	}
	return tw.Flush()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
