// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stats

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	m := NewMap()
	var (
		tiles = m.Int("tiles")
		_     = m.Int("files")
		depth = m.Int("pending_max")
	)
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tiles.Add(2)
			depth.Max(int64(i))
		}(i)
	}
	wg.Wait()
	vals := m.Snapshot()
	if got, want := len(vals), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals["tiles"], int64(200); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals["pending_max"], int64(100); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals.String(), "files:0 pending_max:100 tiles:200"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMerge(t *testing.T) {
	a := Values{"tiles": 3, "pending_max": 4}
	a.Merge(Values{"tiles": 2, "pending_max": 2, "files": 1})
	if got, want := a["tiles"], int64(5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := a["pending_max"], int64(4); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := a["files"], int64(1); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNil(t *testing.T) {
	var m *Map
	c := m.Int("x")
	c.Add(1)
	c.Max(3)
	if got, want := c.Get(), int64(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := m.Snapshot(); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
