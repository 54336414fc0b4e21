// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridslice

// Well-known metadata keys.
const (
	// KeyWholeExtent holds the 6 inclusive index bounds of the full
	// spatial grid.
	KeyWholeExtent = "whole_extent"
	// KeyIndexInitializer names the key that holds the number of
	// available indices (time steps).
	KeyIndexInitializer = "index_initializer_key"
	// KeyIndexRequest names the key used to request an index or an
	// inclusive index range.
	KeyIndexRequest = "index_request_key"

	// KeyArrays lists the arrays requested from upstream.
	KeyArrays = "arrays"
	// KeyExtent holds the requested spatial extent.
	KeyExtent = "extent"
	// KeyDeviceID holds the device a request should execute on, or
	// NoDevice.
	KeyDeviceID = "device_id"

	// KeyXCoordinates, KeyYCoordinates and KeyZCoordinates hold the
	// monotonic coordinate arrays of the whole extent.
	KeyXCoordinates = "x_coordinates"
	KeyYCoordinates = "y_coordinates"
	KeyZCoordinates = "z_coordinates"
	// KeyTime holds the time coordinate of every available step.
	KeyTime = "time"
	// KeyCalendar and KeyTimeUnits describe the time coordinate, in
	// the CF convention ("standard", "days since 2022-01-01 00:00:00").
	KeyCalendar  = "calendar"
	KeyTimeUnits = "time_units"

	// KeyPointArrays and KeyInformationArrays catalog the arrays a
	// source can produce.
	KeyPointArrays       = "point_arrays"
	KeyInformationArrays = "information_arrays"
	// KeyInformationArraySizes holds, in the order of
	// KeyInformationArrays, the per-step length of each information
	// array.
	KeyInformationArraySizes = "information_array_sizes"
	// KeyRunID identifies a pipeline run in output headers.
	KeyRunID = "run_id"
)

// NoDevice is the device id of requests that execute on the host.
const NoDevice = -1
