// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command gridslice runs a synthetic gridded pipeline over a set of
// in-process participants and writes its output with the collective
// writer. It exercises the space-time executive and the writer as a
// distributed run would, with each participant on its own goroutine.
//
// Executive and writer parameters are set through the profile at
// $HOME/.gridslice/config or with -set, for example:
//
//	gridslice -ranks 4 -set gridslice/writer.file-name=/tmp/out_%t%.gsl
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/exec"
	"github.com/grailbio/gridslice/grid"
	"github.com/grailbio/gridslice/gridconfig"
	"github.com/grailbio/gridslice/gridio"
	"github.com/grailbio/gridslice/stats"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gridslice [flags]

Gridslice generates analytic temperature and pressure fields over a
longitude/latitude grid and writes them to a series of files, running
the pipeline on -ranks in-process participants.

`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("gridslice: ")
	must.Func = log.Fatal
	flag.Usage = usage
	var (
		ranks    = flag.Int("ranks", 1, "number of participants")
		nx       = flag.Int("nx", 360, "number of longitudes")
		ny       = flag.Int("ny", 181, "number of latitudes")
		nz       = flag.Int("nz", 1, "number of levels")
		nsteps   = flag.Int("steps", 24, "number of time steps")
		units    = flag.String("units", "hours since 2000-01-01 00:00:00", "time units")
		calendar = flag.String("calendar", "standard", "calendar")
	)
	sess, ex, w := gridconfig.Parse()
	must.True(*ranks > 0, "-ranks must be positive")
	must.True(*nx > 0 && *ny > 0 && *nz > 0 && *nsteps > 0, "grid dimensions must be positive")

	src := &grid.Source{
		WholeExtent: gridslice.Extent{0, int64(*nx - 1), 0, int64(*ny - 1), 0, int64(*nz - 1)},
		Bounds:      [6]float64{0, 360 * float64(*nx-1) / float64(*nx), -90, 90, 0, float64(*nz - 1)},
		NumSteps:    int64(*nsteps),
		TimeBounds:  [2]float64{0, float64(*nsteps - 1)},
		Calendar:    *calendar,
		Units:       *units,
		Fields: []grid.Field{
			{Name: "temperature", Func: temperature},
			{Name: "pressure", Func: pressure},
		},
		InfoFields: []grid.InfoField{
			{Name: "solar_longitude", Size: 1, Func: func(t float64, out []float64) {
				out[0] = math.Mod(180-15*t, 360)
			}},
		},
	}

	var (
		ctx     = context.Background()
		md      = src.Metadata()
		comms   = comm.Local(*ranks)
		writers = make([]*gridio.Writer, *ranks)
	)
	err := traverse.Each(*ranks, func(i int) error {
		writers[i] = gridio.NewWriter(w.Config())
		return sess.Run(ctx, comms[i], md, exec.NewSpaceTime(ex.Config()), src.Execute, writers[i])
	})
	if err != nil {
		log.Fatal(err)
	}
	must.Nil(sess.Shutdown(ctx))
	written := make(stats.Values)
	for _, wr := range writers {
		written.Merge(wr.Stats().Snapshot())
	}
	log.Printf("%s", sess.Stats().Snapshot())
	log.Printf("%s", written)
	for _, err := range writers[0].Diagnostics() {
		log.Printf("warning: %v", err)
	}
	fmt.Println(strings.Join(writers[0].Files(), "\n"))
}

// temperature is a zonally varying field with a diurnal cycle that
// follows the sun.
func temperature(lon, lat, lev, t float64) float64 {
	sun := math.Mod(180-15*t, 360)
	return 288 - 30*math.Pow(math.Sin(lat*math.Pi/180), 2) +
		5*math.Cos((lon-sun)*math.Pi/180)*math.Cos(lat*math.Pi/180) - 6.5*lev
}

func pressure(lon, lat, lev, t float64) float64 {
	return 101325*math.Exp(-lev/8) + 500*math.Sin(2*lon*math.Pi/180+t/12)*math.Cos(lat*math.Pi/180)
}
