// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trace defines the on-disk form of gridslice session traces,
// which use Chrome's event tracing format.
package trace

import (
	"encoding/json"
	"io"
)

// T is a trace: a list of events, encoded as a JSON object.
type T struct {
	Events []Event `json:"traceEvents"`
}

// Event is an event in the Chrome tracing format. The fields are
// mirrored exactly. For more details, see:
//
//	https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/preview
//
// In gridslice traces, Pid is the rank of the participant that
// recorded the event, and Ts and Dur are in microseconds.
type Event struct {
	Pid  int                    `json:"pid"`
	Tid  int                    `json:"tid"`
	Ts   int64                  `json:"ts"`
	Ph   string                 `json:"ph"`
	Dur  int64                  `json:"dur,omitempty"`
	Name string                 `json:"name"`
	Cat  string                 `json:"cat,omitempty"`
	Args map[string]interface{} `json:"args"`
}

// Encode writes t to w.
func (t *T) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(t)
}

// Decode reads a trace from r into t.
func (t *T) Decode(r io.Reader) error {
	return json.NewDecoder(r).Decode(t)
}
