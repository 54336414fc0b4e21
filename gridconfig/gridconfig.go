// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gridconfig provides a mechanism to configure gridslice runs
// from a shared configuration. Gridconfig uses the configuration
// mechanism in package github.com/grailbio/base/config, and reads a
// default profile from $HOME/.gridslice/config.
//
// A profile may set any of the parameters of the gridslice,
// gridslice/spacetime and gridslice/writer instances, for example:
//
//	param gridslice parallelism = 8
//	param gridslice/spacetime temporal-partition-size = 4
//	param gridslice/writer (
//		file-name = "/data/out_%t%.gsl"
//		steps-per-file = 24
//	)
package gridconfig

import (
	"flag"
	"os"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/must"
	"github.com/grailbio/gridslice/exec"
	"github.com/grailbio/gridslice/gridio"
)

// Path determines the location of the gridslice profile read by
// Parse.
var Path = os.ExpandEnv("$HOME/.gridslice/config")

// Parse registers configuration flags and calls flag.Parse. It reads
// the gridslice configuration from Path and returns the session, the
// space-time executive and the writer configured by the profile and
// any flags provided. Parse panics if configuration fails.
//
// The returned executive and writer serve as templates: each
// participant of a run should use its own copies, created from their
// Config methods.
func Parse() (sess *exec.Session, ex *exec.SpaceTimeExecutive, w *gridio.Writer) {
	config.RegisterFlags("", Path)
	flag.Parse()
	must.Nil(config.ProcessFlags())
	config.Must("gridslice", &sess)
	config.Must("gridslice/spacetime", &ex)
	config.Must("gridslice/writer", &w)
	return
}
