// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"

	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/meta"
)

// An Executive decides which requests a participant makes to the
// upstream pipeline. Initialize is called once per run with the
// pipeline's metadata; NextRequest is then called until it returns
// empty metadata, after which it keeps returning empty metadata.
//
// Executives are owned by a single driver goroutine and are not safe
// for concurrent use.
type Executive interface {
	Initialize(ctx context.Context, c comm.Communicator, md meta.Metadata) error
	NextRequest() meta.Metadata
}

// A Planner is an Executive that can describe, after Initialize, the
// work units it hands out. Sinks that must agree on a global layout,
// such as collective writers, use the plan.
type Planner interface {
	Executive
	Plan() gridslice.Plan
}
