// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

import "github.com/grailbio/base/errors"

// Error kinds reported by gridslice. They are ordinary
// github.com/grailbio/base/errors kinds, so errors may be tested with
// errors.Is(gridslice.MissingMetadata, err).
const (
	// MissingMetadata indicates that a required pipeline-control key is
	// absent from the pipeline metadata.
	MissingMetadata = errors.NotExist
	// InvalidRange indicates an inconsistent range, such as an inverted
	// temporal extent or a malformed spatial extent.
	InvalidRange = errors.Invalid
	// OutOfRange indicates a user supplied extent that is not covered by
	// the available domain.
	OutOfRange = errors.Invalid
	// OutOfDomain indicates a bounding box that does not intersect the
	// available coordinates.
	OutOfDomain = errors.Invalid
	// IncompatiblePartitioning indicates that index compatibility was
	// requested but the temporal partitioning does not produce one
	// partition per time step.
	IncompatiblePartitioning = errors.Precondition
	// UnsupportedConfiguration indicates a feature that cannot be used
	// with out-of-order execution. It is reported and the feature is
	// disabled.
	UnsupportedConfiguration = errors.NotSupported
	// CollectiveIO indicates that a participant failed during a
	// collective write. It is always fatal for the whole run.
	CollectiveIO = errors.Unavailable
)
