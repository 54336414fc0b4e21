// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package gridslice implements a dataflow execution framework for large
	gridded datasets that are processed over a combined space and time
	index domain by many cooperating participants (ranks), each running a
	pool of workers that may in turn be bound to accelerator devices.

	A pipeline run is driven by an executive (package exec). The
	space-time executive decomposes the working spatial extent and the
	requested range of time steps into work units: the Cartesian product
	of spatial partitions and temporal partitions. Work units are split
	into contiguous, nearly equal blocks over the participants; each
	participant serves its block as a backlog of requests. No
	communication is needed to agree on the assignment: every participant
	recomputes the same partitioning from the same pipeline metadata.

	Results come back from the worker pool in completion order, which is
	not the order in which requests were handed out. The streaming writer
	(package gridio) buffers them by output file and performs one
	collective write per file once all of the file's time steps have
	arrived, so files contain contiguous, correctly ordered blocks of
	time steps regardless of arrival order.

	This package contains the pieces shared by both sides: extents, work
	units and plans, the domain partitioner, and the error kinds used to
	report configuration problems.
*/
package gridslice
