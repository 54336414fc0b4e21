// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stats provides named counters shared between the execution
// engine and its sinks. Counters are safe for concurrent use; a Map
// can be snapshotted at any time and snapshots from several
// participants can be merged.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Values is a snapshot of the counters in a Map.
type Values map[string]int64

// Merge adds the values of w into v. Counters whose names end in
// "_max" keep the larger value instead.
func (v Values) Merge(w Values) {
	for k, x := range w {
		if strings.HasSuffix(k, "_max") {
			if x > v[k] {
				v[k] = x
			}
			continue
		}
		v[k] += x
	}
}

// String returns the values as "name:value" pairs sorted by name.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		keys[i] = fmt.Sprintf("%s:%d", key, v[key])
	}
	return strings.Join(keys, " ")
}

// A Map is a set of counters keyed by name. The zero Map is not
// usable; use NewMap.
type Map struct {
	mu     sync.Mutex
	values map[string]*Int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]*Int)}
}

// Int returns the counter with the provided name, creating it if
// needed. A nil Map returns a nil counter, which discards updates.
func (m *Map) Int(name string) *Int {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.values[name]
	if v == nil {
		v = new(Int)
		m.values[name] = v
	}
	return v
}

// Snapshot returns the current values of all counters in m.
func (m *Map) Snapshot() Values {
	vals := make(Values)
	if m == nil {
		return vals
	}
	m.mu.Lock()
	for k, v := range m.values {
		vals[k] = v.Get()
	}
	m.mu.Unlock()
	return vals
}

// An Int is an integer counter. The nil *Int is a valid counter that
// ignores updates and reads as zero.
type Int struct {
	val int64
}

// Add increments v by delta and returns the new value.
func (v *Int) Add(delta int64) int64 {
	if v == nil {
		return 0
	}
	return atomic.AddInt64(&v.val, delta)
}

// Max raises v to x if x is larger than its current value.
func (v *Int) Max(x int64) {
	if v == nil {
		return
	}
	for {
		cur := atomic.LoadInt64(&v.val)
		if x <= cur || atomic.CompareAndSwapInt64(&v.val, cur, x) {
			return
		}
	}
}

// Get returns the current value of v.
func (v *Int) Get() int64 {
	if v == nil {
		return 0
	}
	return atomic.LoadInt64(&v.val)
}
