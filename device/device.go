// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package device enumerates the accelerator devices visible to a
// participant.
package device

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice/comm"
)

// A Lister lists the devices available to a participant of a run.
// Participants sharing a node should receive disjoint device sets
// where possible.
type Lister interface {
	Devices(ctx context.Context, c comm.Communicator) ([]int, error)
}

// Env lists the node's devices from the named environment variable,
// which holds a comma separated list of device ordinals in the style
// of CUDA_VISIBLE_DEVICES. An unset or empty variable means no
// devices. The node's devices are shared among ranks with Share.
type Env string

// CUDA lists devices from CUDA_VISIBLE_DEVICES.
const CUDA Env = "CUDA_VISIBLE_DEVICES"

// Devices implements Lister.
func (e Env) Devices(ctx context.Context, c comm.Communicator) ([]int, error) {
	devices, err := Parse(os.Getenv(string(e)))
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("device: %s", string(e)))
	}
	rank, size := comm.RankSize(c)
	return Share(devices, rank, size), nil
}

// Parse parses a comma separated list of device ordinals. Negative
// ordinals hide all devices, following the CUDA convention.
func Parse(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var devices []int
	for _, field := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("device: invalid device ordinal %q", field))
		}
		if id < 0 {
			break
		}
		devices = append(devices, id)
	}
	return devices, nil
}

// Fixed is a Lister that returns the same node devices to every
// caller, shared among ranks with Share.
type Fixed []int

// Devices implements Lister.
func (f Fixed) Devices(ctx context.Context, c comm.Communicator) ([]int, error) {
	rank, size := comm.RankSize(c)
	return Share(f, rank, size), nil
}

// Share returns the subset of a node's devices used by rank out of
// size co-located ranks. With at least as many devices as ranks each
// rank receives a disjoint, strided subset; otherwise ranks share
// devices round-robin, one device each.
func Share(devices []int, rank, size int) []int {
	if len(devices) == 0 {
		return nil
	}
	if len(devices) < size {
		return []int{devices[rank%len(devices)]}
	}
	var mine []int
	for i := rank; i < len(devices); i += size {
		mine = append(mine, devices[i])
	}
	return mine
}
