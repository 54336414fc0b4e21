// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice"
	"github.com/grailbio/gridslice/comm"
	"github.com/grailbio/gridslice/meta"
)

// IndexExecutive is the default executive. It makes a single request
// for index 0 of the pipeline's index space and is then exhausted.
type IndexExecutive struct {
	req  meta.Metadata
	plan gridslice.Plan
}

// Initialize implements Executive.
func (e *IndexExecutive) Initialize(ctx context.Context, c comm.Communicator, md meta.Metadata) error {
	e.req = meta.Metadata{}
	key, err := md.String(gridslice.KeyIndexRequest)
	if err != nil {
		log.Error.Printf("exec.IndexExecutive: no index request key has been specified: %v", err)
		return errors.E(gridslice.MissingMetadata, "no index request key has been specified", err)
	}
	e.req.SetString(gridslice.KeyIndexRequest, key)
	e.req.SetInt(key, 0)

	rank, size := comm.RankSize(c)
	e.plan = gridslice.Plan{Rank: rank, Size: size, Steps: gridslice.TemporalExtent{0, 0}, Count: 1}
	if v, err := md.Ints(gridslice.KeyWholeExtent); err == nil {
		if ext, err := gridslice.ExtentOf(v); err == nil {
			e.plan.Extent = ext
			e.plan.Spatial = []gridslice.Extent{ext}
			e.plan.Temporal = []gridslice.TemporalExtent{{0, 0}}
			e.plan.Units = []gridslice.WorkUnit{e.plan.Unit(0)}
		}
	}
	return nil
}

// NextRequest implements Executive. The cached request is returned
// once and replaced with an empty one.
func (e *IndexExecutive) NextRequest() meta.Metadata {
	req := e.req
	e.req = meta.Metadata{}
	return req
}

// Plan implements Planner. Every participant plans the single index 0
// over the whole extent.
func (e *IndexExecutive) Plan() gridslice.Plan {
	return e.plan
}
